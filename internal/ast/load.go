package ast

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonNode is the wire shape of every tagged-union node: a discriminant
// "kind" plus the rest of the node's fields, decoded field-by-field by
// decodeExpression/decodeStatement/decodeType below. This mirrors how the
// front-end's real AST (out of scope here) would be serialized across a
// process boundary to the core: one flat object per node with a kind tag,
// not a Go-specific encoding.
type jsonNode map[string]jsoniter.RawMessage

// LoadBundle decodes a JSON-encoded AST bundle — the closed-world input
// described in spec.md §6 — from r.
func LoadBundle(r io.Reader) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	var wire struct {
		Contracts []jsonNode `json:"contracts"`
	}
	if err := jsonAPI.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}

	b := &Bundle{}
	for i, cn := range wire.Contracts {
		c, err := decodeContract(cn)
		if err != nil {
			return nil, fmt.Errorf("contract %d: %w", i, err)
		}
		b.Contracts = append(b.Contracts, c)
	}
	return b, nil
}

func getStr(n jsonNode, key string) string {
	var s string
	if raw, ok := n[key]; ok {
		_ = jsonAPI.Unmarshal(raw, &s)
	}
	return s
}

func getBool(n jsonNode, key string) bool {
	var v bool
	if raw, ok := n[key]; ok {
		_ = jsonAPI.Unmarshal(raw, &v)
	}
	return v
}

func getInt(n jsonNode, key string) int {
	var v int
	if raw, ok := n[key]; ok {
		_ = jsonAPI.Unmarshal(raw, &v)
	}
	return v
}

func getStrs(n jsonNode, key string) []string {
	var v []string
	if raw, ok := n[key]; ok {
		_ = jsonAPI.Unmarshal(raw, &v)
	}
	return v
}

func getRaw(n jsonNode, key string) (jsonNode, bool) {
	raw, ok := n[key]
	if !ok {
		return nil, false
	}
	var v jsonNode
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func getRawSlice(n jsonNode, key string) []jsonNode {
	raw, ok := n[key]
	if !ok {
		return nil
	}
	var v []jsonNode
	_ = jsonAPI.Unmarshal(raw, &v)
	return v
}

func decodeContract(n jsonNode) (*Contract, error) {
	c := &Contract{
		Name:          getStr(n, "name"),
		Linearization: getStrs(n, "linearization"),
	}
	if len(c.Linearization) == 0 {
		c.Linearization = []string{c.Name}
	}
	for _, sv := range getRawSlice(n, "stateVars") {
		vd, err := decodeVarDecl(sv)
		if err != nil {
			return nil, fmt.Errorf("state var: %w", err)
		}
		vd.StateVariable = true
		c.StateVars = append(c.StateVars, vd)
	}
	for _, en := range getRawSlice(n, "enums") {
		c.Enums = append(c.Enums, &EnumDef{
			Name:   getStr(en, "name"),
			Values: getStrs(en, "values"),
		})
	}
	for _, sd := range getRawSlice(n, "structs") {
		s := &StructDef{Name: getStr(sd, "name")}
		for _, f := range getRawSlice(sd, "fields") {
			vd, err := decodeVarDecl(f)
			if err != nil {
				return nil, fmt.Errorf("struct field: %w", err)
			}
			s.Fields = append(s.Fields, vd)
		}
		c.Structs = append(c.Structs, s)
	}
	for _, md := range getRawSlice(n, "modifiers") {
		m, err := decodeModifier(md)
		if err != nil {
			return nil, fmt.Errorf("modifier: %w", err)
		}
		c.Modifiers = append(c.Modifiers, m)
	}
	if ctor, ok := getRaw(n, "constructor"); ok {
		f, err := decodeFunction(ctor)
		if err != nil {
			return nil, fmt.Errorf("constructor: %w", err)
		}
		f.IsConstructor = true
		f.Contract = c.Name
		c.Constructor = f
	}
	for _, fn := range getRawSlice(n, "functions") {
		f, err := decodeFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("function: %w", err)
		}
		f.Contract = c.Name
		c.Functions = append(c.Functions, f)
	}
	if fb, ok := getRaw(n, "fallback"); ok {
		f, err := decodeFunction(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		f.IsFallback = true
		f.Contract = c.Name
		c.Fallback = f
	}
	for _, uf := range getRawSlice(n, "usingFor") {
		c.UsingFor = append(c.UsingFor, &UsingFor{
			TypeName: getStr(uf, "type"),
			Library:  getStr(uf, "library"),
		})
	}
	return c, nil
}

func decodeVarDecl(n jsonNode) (*VariableDeclaration, error) {
	typ, err := decodeType(n, "type")
	if err != nil {
		return nil, err
	}
	vd := &VariableDeclaration{
		Name:            getStr(n, "name"),
		Type:            typ,
		Visibility:      decodeVisibility(getStr(n, "visibility")),
		StorageLocation: decodeStorageLocation(getStr(n, "storageLocation")),
	}
	if iv, ok := getRaw(n, "initialValue"); ok {
		e, err := decodeExpression(iv)
		if err != nil {
			return nil, fmt.Errorf("initial value: %w", err)
		}
		vd.InitialValue = e
	}
	return vd, nil
}

func decodeModifier(n jsonNode) (*ModifierDef, error) {
	m := &ModifierDef{Name: getStr(n, "name")}
	for _, p := range getRawSlice(n, "params") {
		vd, err := decodeVarDecl(p)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, vd)
	}
	if body, ok := getRaw(n, "body"); ok {
		b, err := decodeBlock(body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		m.Body = b
	}
	return m, nil
}

func decodeFunction(n jsonNode) (*FunctionDef, error) {
	f := &FunctionDef{
		Name:       getStr(n, "name"),
		Visibility: decodeVisibility(getStr(n, "visibility")),
		Mutability: decodeMutability(getStr(n, "mutability")),
	}
	for _, p := range getRawSlice(n, "params") {
		vd, err := decodeVarDecl(p)
		if err != nil {
			return nil, err
		}
		f.Params = append(f.Params, vd)
	}
	for _, p := range getRawSlice(n, "returnParams") {
		vd, err := decodeVarDecl(p)
		if err != nil {
			return nil, err
		}
		f.ReturnParams = append(f.ReturnParams, vd)
	}
	for _, mi := range getRawSlice(n, "modifiers") {
		inv := &ModifierInvocation{Name: getStr(mi, "name")}
		for _, a := range getRawSlice(mi, "args") {
			e, err := decodeExpression(a)
			if err != nil {
				return nil, fmt.Errorf("modifier arg: %w", err)
			}
			inv.Args = append(inv.Args, e)
		}
		f.Modifiers = append(f.Modifiers, inv)
	}
	if body, ok := getRaw(n, "body"); ok {
		b, err := decodeBlock(body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		f.Body = b
	}
	return f, nil
}

func decodeVisibility(s string) Visibility {
	switch s {
	case "external":
		return VisExternal
	case "internal":
		return VisInternal
	case "private":
		return VisPrivate
	default:
		return VisPublic
	}
}

func decodeMutability(s string) Mutability {
	switch s {
	case "pure":
		return MutPure
	case "view":
		return MutView
	case "payable":
		return MutPayable
	default:
		return MutNonpayable
	}
}

func decodeStorageLocation(s string) StorageLocation {
	switch s {
	case "storage":
		return LocStorage
	case "memory":
		return LocMemory
	case "calldata":
		return LocCalldata
	default:
		return LocDefault
	}
}

func decodeType(n jsonNode, key string) (*TypeName, error) {
	raw, ok := getRaw(n, key)
	if !ok {
		return &TypeName{Kind: TypeUnknown}, nil
	}
	return decodeTypeNode(raw)
}

func decodeTypeNode(n jsonNode) (*TypeName, error) {
	kind := getStr(n, "kind")
	t := &TypeName{Bits: getInt(n, "bits")}
	switch kind {
	case "bool":
		t.Kind = TypeBool
	case "int":
		t.Kind = TypeInt
		if t.Bits == 0 {
			t.Bits = 256
		}
	case "uint":
		t.Kind = TypeUint
		if t.Bits == 0 {
			t.Bits = 256
		}
	case "bytesN":
		t.Kind = TypeBytesN
	case "string":
		t.Kind = TypeString
	case "address":
		t.Kind = TypeAddress
	case "contract":
		t.Kind = TypeContract
		t.ContractName = getStr(n, "name")
	case "struct":
		t.Kind = TypeStruct
		t.StructName = getStr(n, "name")
		t.DeclaringContract = getStr(n, "contract")
	case "enum":
		t.Kind = TypeEnum
		t.EnumName = getStr(n, "name")
		t.DeclaringContract = getStr(n, "contract")
	case "mapping":
		t.Kind = TypeMapping
		for _, k := range getRawSlice(n, "keys") {
			kt, err := decodeTypeNode(k)
			if err != nil {
				return nil, err
			}
			t.Key = append(t.Key, kt)
		}
		if v, ok := getRaw(n, "value"); ok {
			vt, err := decodeTypeNode(v)
			if err != nil {
				return nil, err
			}
			t.Value = vt
		}
	case "array":
		t.Kind = TypeArray
		t.Dynamic = getBool(n, "dynamic")
		if e, ok := getRaw(n, "elem"); ok {
			et, err := decodeTypeNode(e)
			if err != nil {
				return nil, err
			}
			t.Elem = et
		}
	case "tuple":
		t.Kind = TypeTuple
		for _, e := range getRawSlice(n, "elements") {
			et, err := decodeTypeNode(e)
			if err != nil {
				return nil, err
			}
			t.Elements = append(t.Elements, et)
		}
	default:
		t.Kind = TypeUnknown
	}
	return t, nil
}
