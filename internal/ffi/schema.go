package ffi

import (
	"fmt"
	"sort"
)

// Mode 是符号的调用约定。
type Mode uint8

const (
	// Blocking 只能同步调用。
	Blocking Mode = iota
	// Nonblocking 只能在工作 goroutine 上调用。
	Nonblocking
	// Varies 同时生成同步入口 <name> 和异步入口 <name>_async。
	Varies
)

// AsyncSuffix 是异步入口名的后缀。
const AsyncSuffix = "_async"

// Symbol 声明一个原生函数。
type Symbol struct {
	Name     string
	Params   []*Type
	Result   *Type
	Mode     Mode
	Optional bool // 仅部分库版本导出
}

// Schema 是原生函数表的声明。
type Schema []Symbol

// Entry 是由 Schema 派生出的一个可调用入口。
type Entry struct {
	Symbol   string // 实际解析的原生符号名
	Params   []*Type
	Result   *Type
	Blocking bool
	Optional bool
}

// Table 以入口名索引所有入口。
type Table map[string]Entry

// GenerateVariants 从 Schema 派生入口表。
// Varies 符号得到两个入口，它们指向同一个原生符号、共享同一签名。
func GenerateVariants(schema Schema) (Table, error) {
	table := make(Table, len(schema))
	add := func(name string, e Entry) error {
		if _, dup := table[name]; dup {
			return fmt.Errorf("ffi: duplicate entry %q", name)
		}
		table[name] = e
		return nil
	}
	for _, s := range schema {
		if s.Name == "" {
			return nil, fmt.Errorf("ffi: symbol without name")
		}
		result := s.Result
		if result == nil {
			result = Void
		}
		if result.Kind == KindBuffer {
			return nil, fmt.Errorf("ffi: %s cannot return a buffer", s.Name)
		}
		base := Entry{
			Symbol:   s.Name,
			Params:   s.Params,
			Result:   result,
			Optional: s.Optional,
		}
		switch s.Mode {
		case Blocking, Nonblocking:
			e := base
			e.Blocking = s.Mode == Blocking
			if err := add(s.Name, e); err != nil {
				return nil, err
			}
		case Varies:
			blocking, nonblocking := base, base
			blocking.Blocking = true
			if err := add(s.Name, blocking); err != nil {
				return nil, err
			}
			if err := add(s.Name+AsyncSuffix, nonblocking); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("ffi: %s has unknown mode %d", s.Name, s.Mode)
		}
	}
	return table, nil
}

// Names 返回排好序的入口名。
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
