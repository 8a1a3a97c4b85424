package scrambler

// reservedWords are names a generated identifier must never collide with:
// language keywords plus soft keywords that are contextual in newer grammar
// revisions.
var reservedWords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,

	"match": true, "case": true, "type": true,
}

func isReserved(name string) bool {
	return reservedWords[name]
}
