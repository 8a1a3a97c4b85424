package transformer

import (
	"github.com/whit3rabbit/pymixer/internal/astutil"
	"github.com/whit3rabbit/pymixer/internal/pyast"
)

// Names of the emitted decode helpers. They carry the protected runtime
// prefix so the renamer and the policy leave them alone.
const (
	decodeFuncName = "_pymix_decode"
	layerTableName = "_pymix_layers"
	base64FuncName = "_pymix_b64"
	rot13FuncName  = "_pymix_rot"
	revFuncName    = "_pymix_rev"
	hexFuncName    = "_pymix_hex"
)

// DecodeRuntime builds the statements of the decode runtime emitted into
// every file with at least one encoded literal. Every helper is fail-soft:
// on any error it returns its input unchanged rather than raising into the
// obfuscated program.
func DecodeRuntime() []pyast.Stmt {
	return []pyast.Stmt{
		base64Helper(),
		rot13Helper(),
		reverseHelper(),
		hexHelper(),
		layerTable(),
		decodeDispatcher(),
	}
}

// def _pymix_b64(s):
//
//	try:
//	    import base64
//	    return base64.b64decode(s.encode()).decode()
//	except Exception:
//	    return s
func base64Helper() pyast.Stmt {
	decoded := astutil.MethodCall(
		&pyast.Call{
			Func: &pyast.Attribute{Value: astutil.Load("base64"), Attr: "b64decode"},
			Args: []pyast.Expr{astutil.MethodCall(astutil.Load("s"), "encode")},
		},
		"decode",
	)
	return astutil.Def(base64FuncName, []string{"s"},
		astutil.TryExcept(
			[]pyast.Stmt{
				&pyast.Import{Names: []*pyast.Alias{{Name: "base64"}}},
				astutil.Return(decoded),
			},
			astutil.Return(astutil.Load("s")),
		),
	)
}

// def _pymix_rot(s):
//
//	try:
//	    return ''.join([chr((ord(c) - 13) % 256) for c in s])
//	except Exception:
//	    return s
func rot13Helper() pyast.Stmt {
	shifted := astutil.Call("chr",
		astutil.BinOp(
			astutil.BinOp(astutil.Call("ord", astutil.Load("c")), "-", astutil.Int(13)),
			"%", astutil.Int(256),
		),
	)
	comp := &pyast.ListComp{
		Elt: shifted,
		Generators: []*pyast.CompFor{{
			Target: astutil.Store("c"),
			Iter:   astutil.Load("s"),
		}},
	}
	return astutil.Def(rot13FuncName, []string{"s"},
		astutil.TryExcept(
			[]pyast.Stmt{astutil.Return(astutil.MethodCall(astutil.Str(""), "join", comp))},
			astutil.Return(astutil.Load("s")),
		),
	)
}

// def _pymix_rev(s):
//
//	return s[::-1]
func reverseHelper() pyast.Stmt {
	return astutil.Def(revFuncName, []string{"s"},
		astutil.Return(astutil.SliceReverse(astutil.Load("s"))),
	)
}

// def _pymix_hex(s):
//
//	try:
//	    return bytes.fromhex(s).decode()
//	except Exception:
//	    return s
func hexHelper() pyast.Stmt {
	decoded := astutil.MethodCall(
		&pyast.Call{
			Func: &pyast.Attribute{Value: astutil.Load("bytes"), Attr: "fromhex"},
			Args: []pyast.Expr{astutil.Load("s")},
		},
		"decode",
	)
	return astutil.Def(hexFuncName, []string{"s"},
		astutil.TryExcept(
			[]pyast.Stmt{astutil.Return(decoded)},
			astutil.Return(astutil.Load("s")),
		),
	)
}

// _pymix_layers = {0: _pymix_b64, 1: _pymix_rot, 2: _pymix_rev, 3: _pymix_hex}
func layerTable() pyast.Stmt {
	return astutil.Assign(layerTableName, &pyast.DictLit{
		Keys: []pyast.Expr{
			astutil.Int(LayerBase64), astutil.Int(LayerRot13),
			astutil.Int(LayerReverse), astutil.Int(LayerHex),
		},
		Values: []pyast.Expr{
			astutil.Load(base64FuncName), astutil.Load(rot13FuncName),
			astutil.Load(revFuncName), astutil.Load(hexFuncName),
		},
	})
}

// def _pymix_decode(s, layers):
//
//	try:
//	    for i in layers[::-1]:
//	        s = _pymix_layers[i](s)
//	    return s
//	except Exception:
//	    return s
func decodeDispatcher() pyast.Stmt {
	loop := &pyast.For{
		Target: astutil.Store("i"),
		Iter:   astutil.SliceReverse(astutil.Load("layers")),
		Body: []pyast.Stmt{
			astutil.Assign("s", &pyast.Call{
				Func: astutil.Subscript(astutil.Load(layerTableName), astutil.Load("i")),
				Args: []pyast.Expr{astutil.Load("s")},
			}),
		},
	}
	return astutil.Def(decodeFuncName, []string{"s", "layers"},
		astutil.TryExcept(
			[]pyast.Stmt{loop, astutil.Return(astutil.Load("s"))},
			astutil.Return(astutil.Load("s")),
		),
	)
}
