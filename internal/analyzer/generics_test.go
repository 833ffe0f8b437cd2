package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// Test Plan for the declaration tokenizer:
// 1. Java-style extends/implements clauses yield ordered supertypes with
//    their type arguments, and the symbol's own type parameters.
// 2. Nested generics stay one opaque argument, never split on inner
//    commas, with comma spacing canonicalized.
// 3. C++ base clauses (colon, access modifiers, templates) parse the
//    same way, as do Python base lists and Go type parameter lists.
// 4. Unbalanced brackets degrade to a single captured argument.

func TestParseDeclarationJava(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")

	info := parseDeclaration("class A<X,Y> extends B<X,Z> implements C<W,X>", symbols.KindClass, r)
	assert.Equal(t, []string{"X", "Y"}, info.TypeParameters)
	require.Len(t, info.Supertypes, 2)
	assert.Equal(t, symbols.Supertype{Name: "B", TypeArguments: []string{"X", "Z"}}, info.Supertypes[0])
	assert.Equal(t, symbols.Supertype{Name: "C", TypeArguments: []string{"W", "X"}}, info.Supertypes[1])
}

func TestParseDeclarationJavaForms(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")

	cases := []struct {
		name   string
		decl   string
		kind   symbols.Kind
		params []string
		supers []symbols.Supertype
	}{
		{
			name:   "plain class",
			decl:   "public final class Registry {",
			kind:   symbols.KindClass,
			params: nil,
			supers: nil,
		},
		{
			name:   "bounded parameter keeps only the name",
			decl:   "class Cache<K extends Comparable<K>, V> implements Store<K, V>",
			kind:   symbols.KindClass,
			params: []string{"K", "V"},
			supers: []symbols.Supertype{{Name: "Store", TypeArguments: []string{"K", "V"}}},
		},
		{
			name:   "interface extends list",
			decl:   "interface Renderable extends Drawable, Comparable<Renderable>",
			kind:   symbols.KindInterface,
			params: nil,
			supers: []symbols.Supertype{
				{Name: "Drawable"},
				{Name: "Comparable", TypeArguments: []string{"Renderable"}},
			},
		},
		{
			name:   "permits clause is not inheritance",
			decl:   "sealed class Shape permits Circle, Square",
			kind:   symbols.KindClass,
			params: nil,
			supers: nil,
		},
		{
			name:   "generic method",
			decl:   "public <T> T identity(T value)",
			kind:   symbols.KindMethod,
			params: []string{"T"},
			supers: nil,
		},
		{
			name:   "wildcard argument stays verbatim",
			decl:   "class Sink extends Consumer<? extends Event>",
			kind:   symbols.KindClass,
			params: nil,
			supers: []symbols.Supertype{{Name: "Consumer", TypeArguments: []string{"? extends Event"}}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info := parseDeclaration(tc.decl, tc.kind, r)
			assert.Equal(t, tc.params, info.TypeParameters)
			assert.Equal(t, tc.supers, info.Supertypes)
		})
	}
}

func TestParseDeclarationNestedGenericsVerbatim(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")

	info := parseDeclaration("class Index extends D<Map<String,List<Y>>>", symbols.KindClass, r)
	require.Len(t, info.Supertypes, 1)
	assert.Equal(t, "D", info.Supertypes[0].Name)
	assert.Equal(t, []string{"Map<String, List<Y>>"}, info.Supertypes[0].TypeArguments)

	// already-spaced input produces the same canonical form
	info = parseDeclaration("class Index extends D<Map<String, List<Y>>>", symbols.KindClass, r)
	assert.Equal(t, []string{"Map<String, List<Y>>"}, info.Supertypes[0].TypeArguments)
}

func TestParseDeclarationCpp(t *testing.T) {
	t.Parallel()
	r := rulesFor("cpp")

	cases := []struct {
		name   string
		decl   string
		params []string
		supers []symbols.Supertype
	}{
		{
			name:   "access modifiers stripped",
			decl:   "class Derived : public Base<T>, private Helper",
			supers: []symbols.Supertype{{Name: "Base", TypeArguments: []string{"T"}}, {Name: "Helper"}},
		},
		{
			name:   "template prefix owns the parameter list",
			decl:   "template <typename T, int N> class Grid : public Container<T>",
			params: []string{"T", "N"},
			supers: []symbols.Supertype{{Name: "Container", TypeArguments: []string{"T"}}},
		},
		{
			name:   "scope operator is not a base clause",
			decl:   "class Inner : public outer::Base",
			supers: []symbols.Supertype{{Name: "outer::Base"}},
		},
		{
			name:   "virtual base",
			decl:   "class Diamond : virtual public Base",
			supers: []symbols.Supertype{{Name: "Base"}},
		},
		{
			name: "no base clause",
			decl: "struct Point {",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info := parseDeclaration(tc.decl, symbols.KindClass, r)
			assert.Equal(t, tc.params, info.TypeParameters)
			assert.Equal(t, tc.supers, info.Supertypes)
		})
	}
}

func TestParseDeclarationPython(t *testing.T) {
	t.Parallel()
	r := rulesFor("python")

	info := parseDeclaration("class Task(Base, Generic[T], metaclass=ABCMeta):", symbols.KindClass, r)
	require.Len(t, info.Supertypes, 2)
	assert.Equal(t, symbols.Supertype{Name: "Base"}, info.Supertypes[0])
	assert.Equal(t, symbols.Supertype{Name: "Generic", TypeArguments: []string{"T"}}, info.Supertypes[1])

	info = parseDeclaration("class Registry[T](Mapping[str, T]):", symbols.KindClass, r)
	assert.Equal(t, []string{"T"}, info.TypeParameters)
	require.Len(t, info.Supertypes, 1)
	assert.Equal(t, symbols.Supertype{Name: "Mapping", TypeArguments: []string{"str", "T"}}, info.Supertypes[0])
}

func TestParseDeclarationGo(t *testing.T) {
	t.Parallel()
	r := rulesFor("go")

	info := parseDeclaration("type List[T any] struct {", symbols.KindStruct, r)
	assert.Equal(t, []string{"T"}, info.TypeParameters)
	assert.Empty(t, info.Supertypes)

	info = parseDeclaration("func Map[K comparable, V any](m map[K]V) []K {", symbols.KindFunction, r)
	assert.Equal(t, []string{"K", "V"}, info.TypeParameters)
}

func TestParseDeclarationUnbalancedDegrades(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")

	info := parseDeclaration("class Broken extends B<X, Map<Y", symbols.KindClass, r)
	require.Len(t, info.Supertypes, 1)
	assert.Equal(t, "B", info.Supertypes[0].Name)
	assert.Equal(t, []string{"X, Map<Y"}, info.Supertypes[0].TypeArguments)
}

func TestParseTypeRef(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")

	ref := parseTypeRef("  Map<String , Integer> ", r)
	assert.Equal(t, "Map", ref.Name)
	assert.Equal(t, []string{"String", "Integer"}, ref.TypeArguments)

	ref = parseTypeRef("Plain", r)
	assert.Equal(t, symbols.Supertype{Name: "Plain"}, ref)
}

func TestNormalizeTypeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Map<String, List<Y>>", normalizeTypeText("Map<String,List<Y>>"))
	assert.Equal(t, "Map<String, List<Y>>", normalizeTypeText("Map<String,  List<Y>>"))
	assert.Equal(t, "Pair<A, B>", normalizeTypeText("  Pair<A,B>  "))
	assert.Equal(t, "T", normalizeTypeText("T"))
}
