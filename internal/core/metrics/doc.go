// Package metrics 提供 permsync 的 Prometheus 指标
//
// 所有记录方法对 nil 接收者安全：未启用指标时组件持有 nil *Collectors，
// 调用方无需判空。
//
// 指标：
//   - permsync_admission_total{result}    预登录结果
//   - permsync_activation_total{result}   激活校验结果
//   - permsync_debounce_requests_total    去抖请求数
//   - permsync_debounce_coalesced_total   被合并的请求数
//   - permsync_debounce_invocations_total 实际执行次数
//   - permsync_debounce_failures_total    执行失败次数（含 panic）
//   - permsync_debounce_cache_constructed_total / _evicted_total / _entries
//   - permsync_scheduler_tasks_total / permsync_scheduler_panics_total
package metrics
