// Package decl implements the declaration-specifier engine shared by the
// linker (file-scope and block-scope declarations) and the machine
// package (casts, sizeof(T) type names), per the single-engine rule for
// declarations: one place decides how storage classes, qualifiers and
// type keywords combine into a base type.
package decl

import (
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// Spec accumulates a declaration's specifier prefix one token at a time.
// The caller owns cursor movement and the struct/union/enum and
// typedef-name tails, which need symbol-table access Spec deliberately
// does not have; everything keyword-shaped funnels through Apply.
type Spec struct {
	Type      symtab.Type
	Storage   symtab.StorageClass
	IsTypedef bool
	IsConst   bool

	sawType bool
}

// Apply folds one specifier token into the accumulated state and reports
// whether tok was a specifier at all; a false return means the specifier
// prefix has ended and the declarator begins.
//
// The aggregate and typedef-name specifiers (struct/union/enum/SYMBOL)
// return false too: they need table lookups, so the caller handles them
// and records the result with SetBase.
func (s *Spec) Apply(tok token.Token) bool {
	switch tok {
	case token.TYPEDEF:
		s.IsTypedef = true
	case token.AUTO:
		s.Storage |= symtab.StorageAuto
	case token.REGISTER:
		s.Storage |= symtab.StorageRegister
	case token.STATIC:
		s.Storage |= symtab.StorageStatic
	case token.EXTERNAL:
		s.Storage |= symtab.StorageExternal
	case token.VOLATILE:
		s.Storage |= symtab.StorageVolatile
	case token.CONST:
		s.IsConst = true
	case token.UNSIGNED:
		s.Type.Unsigned = true
		s.sawType = true
	case token.SHORT:
		// short int is int-sized storage; the keyword narrows literal
		// promotion only
		s.sawType = true
	case token.CHAR, token.INT, token.LONG, token.FLOAT, token.DOUBLE, token.VOID:
		switch {
		case s.Type.Base == token.LONG && tok == token.INT:
			// "long int" keeps long
		case tok == token.DOUBLE:
			s.Type.Base = token.FLOAT
		default:
			s.Type.Base = tok
		}
		s.sawType = true
	default:
		return false
	}
	return true
}

// SetBase records a base type resolved outside Apply: a struct/union/enum
// specifier or a typedef-named type. A typedef's unsigned bit combines
// with an explicit unsigned qualifier already seen.
func (s *Spec) SetBase(typ symtab.Type) {
	unsigned := s.Type.Unsigned
	s.Type = typ
	s.Type.Unsigned = s.Type.Unsigned || unsigned
	s.sawType = true
}

// SawType reports whether any type specifier has been recorded, which is
// what distinguishes "unsigned x" (implicit int) from a typedef-name
// candidate position.
func (s *Spec) SawType() bool { return s.sawType }

// Finish applies the implicit-int default of the dialect and returns the
// completed base type.
func (s *Spec) Finish() symtab.Type {
	if s.Type.Base == 0 {
		s.Type.Base = token.INT
	}
	return s.Type
}

// StartsDeclaration reports whether tok can open a declaration's
// specifier prefix. Typedef names need a table probe, so the caller
// supplies that check separately.
func StartsDeclaration(tok token.Token) bool {
	return token.IsTypeKeyword(tok) || token.IsStorageClass(tok)
}
