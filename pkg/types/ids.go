package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
//                              SubjectID - 主体标识
// ============================================================================

// SubjectID 连接主体（如玩家）的唯一标识
//
// 128 位 UUID，可比较、可作为 map 键。零值不是合法的主体标识，
// 一旦连接进入预登录阶段，主体标识就必须存在。
type SubjectID uuid.UUID

// EmptySubjectID 空主体标识
var EmptySubjectID SubjectID

// ErrInvalidSubjectID 无效的主体标识
var ErrInvalidSubjectID = errors.New("invalid subject id")

// NewSubjectID 生成随机主体标识
func NewSubjectID() SubjectID {
	return SubjectID(uuid.New())
}

// ParseSubjectID 解析 UUID 字符串形式的主体标识
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EmptySubjectID, fmt.Errorf("%w: %v", ErrInvalidSubjectID, err)
	}
	id := SubjectID(u)
	if id.IsEmpty() {
		return EmptySubjectID, ErrInvalidSubjectID
	}
	return id, nil
}

// MustParseSubjectID 解析主体标识，失败时 panic（用于测试和常量）
func MustParseSubjectID(s string) SubjectID {
	id, err := ParseSubjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String 返回标准 UUID 字符串
func (id SubjectID) String() string {
	return uuid.UUID(id).String()
}

// ShortString 返回前 8 个字符，用于日志
func (id SubjectID) ShortString() string {
	return id.String()[:8]
}

// IsEmpty 检查是否为空
func (id SubjectID) IsEmpty() bool {
	return id == EmptySubjectID
}

// MarshalText 实现 encoding.TextMarshaler
func (id SubjectID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *SubjectID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubjectID, err)
	}
	*id = SubjectID(u)
	return nil
}

// ============================================================================
//                              ConnID - 连接标识
// ============================================================================

// ConnID 传输层连接标识
//
// 同一主体重连会得到新的 ConnID。
type ConnID string

// NewConnID 生成随机连接标识
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// String 返回字符串表示
func (id ConnID) String() string {
	return string(id)
}
