//go:build cgo && (linux || darwin || freebsd)

// Package dylib 用 purego 打开动态库，用 libffi 按签名调用其中的函数
// （包括按值传递和返回结构体）。
package dylib

/*
#cgo pkg-config: libffi
#include <ffi.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

static ffi_type* gv_prim(int kind) {
	switch (kind) {
	case 0: return &ffi_type_void;
	case 1: return &ffi_type_uint8;
	case 2: return &ffi_type_uint8;
	case 3: return &ffi_type_uint16;
	case 4: return &ffi_type_uint32;
	case 5: return &ffi_type_sint32;
	case 6: return &ffi_type_uint64;
	case 7: return sizeof(size_t) == 8 ? &ffi_type_uint64 : &ffi_type_uint32;
	default: return &ffi_type_pointer;
	}
}

static ffi_type* gv_struct_new(size_t n) {
	ffi_type* t = calloc(1, sizeof(ffi_type));
	if (t == NULL) return NULL;
	t->type = FFI_TYPE_STRUCT;
	t->elements = calloc(n + 1, sizeof(ffi_type*));
	if (t->elements == NULL) { free(t); return NULL; }
	return t;
}

static void gv_struct_set(ffi_type* t, size_t i, ffi_type* e) { t->elements[i] = e; }

static void gv_struct_free(ffi_type* t) {
	if (t == NULL) return;
	free(t->elements);
	free(t);
}

static ffi_type** gv_types_new(size_t n) { return calloc(n == 0 ? 1 : n, sizeof(ffi_type*)); }

static void gv_types_set(ffi_type** a, size_t i, ffi_type* t) { a[i] = t; }

static int gv_prep(ffi_cif* cif, unsigned n, ffi_type* rtype, ffi_type** atypes) {
	return ffi_prep_cif(cif, FFI_DEFAULT_ABI, n, rtype, atypes);
}

static void gv_call(ffi_cif* cif, uintptr_t fn, void* rvalue, void** avalue) {
	ffi_call(cif, FFI_FN((void*)fn), rvalue, avalue);
}

static void* gv_addr(uintptr_t p) { return (void*)p; }

static size_t gv_strlen(uintptr_t p) { return strlen((const char*)p); }
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// Library 是 dlopen 打开的动态库。
type Library struct {
	path   string
	handle uintptr

	mu     sync.Mutex
	closed bool
	// C 堆上的 cif 和类型描述，Close 时释放
	cifs    []*C.ffi_cif
	types   []**C.ffi_type
	structs []*C.ffi_type
}

// Open 打开 path 指向的动态库。
func Open(path string) (*Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	return &Library{path: path, handle: h}, nil
}

// Path 返回库文件路径。
func (l *Library) Path() string { return l.path }

// Lookup 解析符号并准备 libffi 调用描述。
func (l *Library) Lookup(name string, params []*ffi.Type, result *ffi.Type) (ffi.Func, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ffi.ErrClosed
	}
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil || addr == 0 {
		return nil, fmt.Errorf("%s: %w", name, ffi.ErrSymbolNotFound)
	}

	rtype := l.ffiType(result)
	atypes := C.gv_types_new(C.size_t(len(params)))
	if atypes == nil {
		return nil, fmt.Errorf("%s: out of memory", name)
	}
	l.types = append(l.types, atypes)
	for i, p := range params {
		C.gv_types_set(atypes, C.size_t(i), l.ffiType(p))
	}

	cif := (*C.ffi_cif)(C.calloc(1, C.sizeof_ffi_cif))
	if cif == nil {
		return nil, fmt.Errorf("%s: out of memory", name)
	}
	l.cifs = append(l.cifs, cif)
	if st := C.gv_prep(cif, C.uint(len(params)), rtype, atypes); st != 0 {
		return nil, fmt.Errorf("ffi_prep_cif %s: status %d", name, int(st))
	}
	return &function{lib: l, name: name, addr: addr, cif: cif, params: params, result: result}, nil
}

func (l *Library) ffiType(t *ffi.Type) *C.ffi_type {
	if t.Kind != ffi.KindStruct {
		return C.gv_prim(C.int(t.Kind))
	}
	st := C.gv_struct_new(C.size_t(len(t.Fields)))
	l.structs = append(l.structs, st)
	for i, f := range t.Fields {
		C.gv_struct_set(st, C.size_t(i), l.ffiType(f))
	}
	return st
}

// Read 拷贝 p 处的 n 个字节。
func (l *Library) Read(p ffi.Pointer, n int) ([]byte, error) {
	if p == 0 {
		return nil, ffi.ErrNullPointer
	}
	if n < 0 || n > ffi.MaxRead {
		return nil, fmt.Errorf("read %d bytes: %w", n, ffi.ErrTooLarge)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return C.GoBytes(C.gv_addr(C.uintptr_t(p)), C.int(n)), nil
}

// CString 拷贝 p 处以 NUL 结尾的字符串。
func (l *Library) CString(p ffi.Pointer) (string, error) {
	if p == 0 {
		return "", ffi.ErrNullPointer
	}
	n := C.gv_strlen(C.uintptr_t(p))
	if uint64(n) > ffi.MaxRead {
		return "", fmt.Errorf("C string of %d bytes: %w", uint64(n), ffi.ErrTooLarge)
	}
	return C.GoStringN((*C.char)(C.gv_addr(C.uintptr_t(p))), C.int(n)), nil
}

// Close 卸载动态库并释放调用描述。
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	err := purego.Dlclose(l.handle)
	for _, c := range l.cifs {
		C.free(unsafe.Pointer(c))
	}
	for _, t := range l.types {
		C.free(unsafe.Pointer(t))
	}
	for _, s := range l.structs {
		C.gv_struct_free(s)
	}
	l.cifs, l.types, l.structs = nil, nil, nil
	if err != nil {
		return fmt.Errorf("dlclose %s: %w", l.path, err)
	}
	return nil
}

type function struct {
	lib    *Library
	name   string
	addr   uintptr
	cif    *C.ffi_cif
	params []*ffi.Type
	result *ffi.Type
}

// Call 按签名把参数写入 C 堆上的槽位后调用。
// buffer 参数在调用期间被固定，槽位里存放的是它的地址。
func (f *function) Call(args ...any) (ffi.Ret, error) {
	if err := ffi.CheckArgs(f.name, f.params, args); err != nil {
		return ffi.Ret{}, err
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	n := len(args)
	avalue := (*[1 << 20]unsafe.Pointer)(C.calloc(C.size_t(n+1), C.size_t(unsafe.Sizeof(uintptr(0)))))
	if avalue == nil {
		return ffi.Ret{}, fmt.Errorf("%s: out of memory", f.name)
	}
	defer C.free(unsafe.Pointer(avalue))

	for i, a := range args {
		size := 8
		if f.params[i].Kind == ffi.KindStruct {
			size = max(size, f.params[i].Size())
		}
		slot := C.calloc(1, C.size_t(size))
		if slot == nil {
			return ffi.Ret{}, fmt.Errorf("%s: out of memory", f.name)
		}
		defer C.free(slot)
		writeArg(unsafe.Slice((*byte)(slot), size), a, &pinner)
		avalue[i] = slot
	}

	rsize := max(8, f.result.Size())
	rvalue := C.calloc(1, C.size_t(rsize))
	if rvalue == nil {
		return ffi.Ret{}, fmt.Errorf("%s: out of memory", f.name)
	}
	defer C.free(rvalue)

	C.gv_call(f.cif, C.uintptr_t(f.addr), rvalue, (*unsafe.Pointer)(unsafe.Pointer(avalue)))
	runtime.KeepAlive(args)

	out := unsafe.Slice((*byte)(rvalue), rsize)
	if f.result.Kind == ffi.KindStruct {
		b := make([]byte, f.result.Size())
		copy(b, out)
		return ffi.Aggregate(b), nil
	}
	// 小于 ffi_arg 的返回值会被扩展到整个字，小端序下低位字节即为原值
	return ffi.Word(readWord(out)), nil
}

func writeArg(slot []byte, a any, pinner *runtime.Pinner) {
	switch v := a.(type) {
	case bool:
		if v {
			slot[0] = 1
		}
	case uint8:
		slot[0] = v
	case uint16:
		*(*uint16)(unsafe.Pointer(&slot[0])) = v
	case uint32:
		*(*uint32)(unsafe.Pointer(&slot[0])) = v
	case int32:
		*(*int32)(unsafe.Pointer(&slot[0])) = v
	case uint64:
		*(*uint64)(unsafe.Pointer(&slot[0])) = v
	case ffi.Pointer:
		*(*uintptr)(unsafe.Pointer(&slot[0])) = uintptr(v)
	case []byte:
		*(*uintptr)(unsafe.Pointer(&slot[0])) = uintptr(ffi.Pin(pinner, v))
	case nil:
	case *ffi.Struct:
		copy(slot, v.Bytes())
	}
}

func readWord(b []byte) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[0]))
}
