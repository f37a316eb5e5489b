package ast

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

func decodeExpression(n jsonNode) (Expression, error) {
	kind := getStr(n, "kind")
	typ, err := decodeType(n, "type")
	if err != nil {
		return nil, err
	}
	t := typed{Typ: typ}

	switch kind {
	case "boolLiteral":
		return &Literal{typed: t, Kind: LitBool, Bool: getBool(n, "value")}, nil
	case "numberLiteral":
		return &Literal{typed: t, Kind: LitNumber, Text: getStr(n, "value"), Subdenomination: getStr(n, "subdenomination")}, nil
	case "stringLiteral":
		return &Literal{typed: t, Kind: LitString, Str: getStr(n, "value")}, nil
	case "hexStringLiteral":
		return &Literal{typed: t, Kind: LitHexString, Str: getStr(n, "value")}, nil
	case "identifier":
		return &Identifier{typed: t, Name: getStr(n, "name"), Kind: decodeIdentKind(getStr(n, "refKind")), Magic: decodeMagicKind(getStr(n, "magic"))}, nil
	case "memberAccess":
		base, err := decodeExpression(mustRaw(n, "base"))
		if err != nil {
			return nil, err
		}
		return &MemberAccess{typed: t, Base: base, Member: getStr(n, "member")}, nil
	case "indexAccess":
		base, err := decodeExpression(mustRaw(n, "base"))
		if err != nil {
			return nil, err
		}
		index, err := decodeExpression(mustRaw(n, "index"))
		if err != nil {
			return nil, err
		}
		return &IndexAccess{typed: t, Base: base, Index: index}, nil
	case "conditional":
		cond, err := decodeExpression(mustRaw(n, "cond"))
		if err != nil {
			return nil, err
		}
		trueE, err := decodeExpression(mustRaw(n, "true"))
		if err != nil {
			return nil, err
		}
		falseE, err := decodeExpression(mustRaw(n, "false"))
		if err != nil {
			return nil, err
		}
		return &Conditional{typed: t, Cond: cond, True: trueE, False: falseE}, nil
	case "unaryOp":
		operand, err := decodeExpression(mustRaw(n, "operand"))
		if err != nil {
			return nil, err
		}
		return &UnaryOp{typed: t, Op: getStr(n, "op"), Operand: operand, Prefix: getBool(n, "prefix")}, nil
	case "binaryOp":
		left, err := decodeExpression(mustRaw(n, "left"))
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(mustRaw(n, "right"))
		if err != nil {
			return nil, err
		}
		return &BinaryOp{typed: t, Op: getStr(n, "op"), Left: left, Right: right}, nil
	case "assignment":
		lhs, err := decodeExpression(mustRaw(n, "lhs"))
		if err != nil {
			return nil, err
		}
		rhs, err := decodeExpression(mustRaw(n, "rhs"))
		if err != nil {
			return nil, err
		}
		return &Assignment{typed: t, Lhs: lhs, Rhs: rhs, Op: getStr(n, "op")}, nil
	case "tuple":
		te := &TupleExpr{typed: t}
		for _, e := range getRawSlice(n, "elements") {
			if len(e) == 0 {
				te.Elements = append(te.Elements, nil)
				continue
			}
			el, err := decodeExpression(e)
			if err != nil {
				return nil, err
			}
			te.Elements = append(te.Elements, el)
		}
		return te, nil
	case "call":
		fc := &FunctionCallExpr{typed: t, Kind: decodeCallKind(getStr(n, "callKind")), EventSignature: getStr(n, "event")}
		if callee, ok := getRaw(n, "callee"); ok {
			c, err := decodeExpression(callee)
			if err != nil {
				return nil, err
			}
			fc.Callee = c
		}
		for _, a := range getRawSlice(n, "args") {
			e, err := decodeExpression(a)
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, e)
		}
		if named, ok := n["namedArgs"]; ok {
			var raw map[string]jsoniter.RawMessage
			if err := jsonAPI.Unmarshal(named, &raw); err == nil {
				fc.NamedArgs = map[string]Expression{}
				for k, v := range raw {
					var vn jsonNode
					if err := jsonAPI.Unmarshal(v, &vn); err != nil {
						return nil, err
					}
					e, err := decodeExpression(vn)
					if err != nil {
						return nil, err
					}
					fc.NamedArgs[k] = e
				}
			}
		}
		if ct, ok := getRaw(n, "createdType"); ok {
			tt, err := decodeTypeNode(ct)
			if err != nil {
				return nil, err
			}
			fc.CreatedType = tt
		}
		return fc, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
}

func decodeIdentKind(s string) IdentKind {
	switch s {
	case "param":
		return IdentParam
	case "local":
		return IdentLocal
	case "contract":
		return IdentContract
	case "magic":
		return IdentMagic
	default:
		return IdentStateVar
	}
}

func decodeMagicKind(s string) MagicKind {
	switch s {
	case "block":
		return MagicBlock
	case "msg":
		return MagicMsg
	case "tx":
		return MagicTx
	case "this":
		return MagicThis
	case "super":
		return MagicSuper
	case "now":
		return MagicNow
	default:
		return NotMagic
	}
}

func decodeCallKind(s string) CallKind {
	switch s {
	case "external":
		return CallExternal
	case "super":
		return CallSuper
	case "library":
		return CallLibrary
	case "bare":
		return CallBare
	case "bareStatic":
		return CallBareStatic
	case "delegate":
		return CallDelegate
	case "creation":
		return CallCreation
	case "send":
		return CallSend
	case "transfer":
		return CallTransfer
	case "crypto":
		return CallCrypto
	case "logging":
		return CallLogging
	case "assert":
		return CallAssert
	case "require":
		return CallRequire
	case "revert":
		return CallRevert
	case "addmod":
		return CallAddMod
	case "mulmod":
		return CallMulMod
	case "push":
		return CallPush
	case "pop":
		return CallPop
	case "newArray":
		return CallNewArray
	case "blockhash":
		return CallBlockHash
	case "gasleft":
		return CallGasLeft
	case "selfdestruct":
		return CallSelfdestruct
	case "metaType":
		return CallMetaType
	case "typeConversion":
		return CallTypeConversion
	case "structConstructor":
		return CallStructConstructor
	default:
		return CallInternal
	}
}
