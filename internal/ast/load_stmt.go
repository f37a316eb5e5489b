package ast

import "fmt"

func decodeBlock(n jsonNode) (*Block, error) {
	b := &Block{}
	for _, sn := range getRawSlice(n, "statements") {
		s, err := decodeStatement(sn)
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, s)
	}
	return b, nil
}

func decodeStatement(n jsonNode) (Statement, error) {
	kind := getStr(n, "kind")
	switch kind {
	case "block":
		return decodeBlock(n)
	case "varDecl":
		s := &VarDeclStatement{}
		for _, d := range getRawSlice(n, "declarations") {
			if len(d) == 0 {
				s.Declarations = append(s.Declarations, nil)
				continue
			}
			vd, err := decodeVarDecl(d)
			if err != nil {
				return nil, err
			}
			s.Declarations = append(s.Declarations, vd)
		}
		if iv, ok := getRaw(n, "initial"); ok {
			e, err := decodeExpression(iv)
			if err != nil {
				return nil, err
			}
			s.Initial = e
		}
		return s, nil
	case "exprStmt":
		e, err := decodeExpression(mustRaw(n, "expr"))
		if err != nil {
			return nil, err
		}
		return &ExprStatement{Expr: e}, nil
	case "if":
		cond, err := decodeExpression(mustRaw(n, "cond"))
		if err != nil {
			return nil, err
		}
		trueStmt, err := decodeStatement(mustRaw(n, "true"))
		if err != nil {
			return nil, err
		}
		s := &IfStatement{Cond: cond, True: trueStmt}
		if fn, ok := getRaw(n, "false"); ok {
			falseStmt, err := decodeStatement(fn)
			if err != nil {
				return nil, err
			}
			s.False = falseStmt
		}
		return s, nil
	case "while":
		cond, err := decodeExpression(mustRaw(n, "cond"))
		if err != nil {
			return nil, err
		}
		body, err := decodeStatement(mustRaw(n, "body"))
		if err != nil {
			return nil, err
		}
		return &WhileStatement{Cond: cond, Body: body}, nil
	case "doWhile":
		body, err := decodeStatement(mustRaw(n, "body"))
		if err != nil {
			return nil, err
		}
		cond, err := decodeExpression(mustRaw(n, "cond"))
		if err != nil {
			return nil, err
		}
		return &DoWhileStatement{Body: body, Cond: cond}, nil
	case "for":
		s := &ForStatement{}
		if in, ok := getRaw(n, "init"); ok {
			st, err := decodeStatement(in)
			if err != nil {
				return nil, err
			}
			s.Init = st
		}
		if cn, ok := getRaw(n, "cond"); ok {
			e, err := decodeExpression(cn)
			if err != nil {
				return nil, err
			}
			s.Cond = e
		}
		if pn, ok := getRaw(n, "post"); ok {
			st, err := decodeStatement(pn)
			if err != nil {
				return nil, err
			}
			s.Post = st
		}
		body, err := decodeStatement(mustRaw(n, "body"))
		if err != nil {
			return nil, err
		}
		s.Body = body
		return s, nil
	case "continue":
		return &ContinueStatement{}, nil
	case "break":
		return &BreakStatement{}, nil
	case "return":
		s := &ReturnStatement{}
		if vn, ok := getRaw(n, "value"); ok {
			e, err := decodeExpression(vn)
			if err != nil {
				return nil, err
			}
			s.Value = e
		}
		return s, nil
	case "emit":
		s := &EmitStatement{EventSignature: getStr(n, "event")}
		for _, a := range getRawSlice(n, "args") {
			e, err := decodeExpression(a)
			if err != nil {
				return nil, err
			}
			s.Args = append(s.Args, e)
		}
		return s, nil
	case "throw":
		return &ThrowStatement{}, nil
	case "assembly":
		return &InlineAssemblyStatement{Source: getStr(n, "source")}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
}

func mustRaw(n jsonNode, key string) jsonNode {
	v, _ := getRaw(n, key)
	return v
}
