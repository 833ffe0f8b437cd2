package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Registry:
// 1. The built-in registry resolves common extensions, with cpp winning
//    the contested .h extension.
// 2. Register validates its input, normalizes extensions, and replaces
//    earlier claims.
// 3. ExtensionsFor unions the requested languages, or all of them.

func TestRegistryDefaults(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	cases := map[string]string{
		"main.go":        "go",
		"script.PY":      "python",
		"widget.tsx":     "typescript",
		"app.jsx":        "javascript",
		"lib.rs":         "rust",
		"Shape.java":     "java",
		"parser.c":       "c",
		"engine.cpp":     "cpp",
		"include/body.h": "cpp",
	}
	for path, want := range cases {
		lang, ok := r.LanguageForFile(path)
		require.True(t, ok, "no language for %s", path)
		assert.Equal(t, want, lang, "path %s", path)
	}

	_, ok := r.LanguageForFile("notes.txt")
	assert.False(t, ok)

	gopls, ok := r.Lookup("go")
	require.True(t, ok)
	assert.Equal(t, "gopls", gopls.Command)
	assert.Equal(t, []string{"serve"}, gopls.Args)

	langs := r.Languages()
	assert.Contains(t, langs, "java")
	assert.Contains(t, langs, "cpp")
	assert.IsNonDecreasing(t, langs)
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Error(t, r.Register(ServerConfig{Command: "x", Extensions: []string{".x"}}), "missing language")
	require.Error(t, r.Register(ServerConfig{Language: "x", Extensions: []string{".x"}}), "missing command")
	require.Error(t, r.Register(ServerConfig{Language: "x", Command: "x"}), "missing extensions")

	require.NoError(t, r.Register(ServerConfig{
		Language:   "zig",
		Command:    "zls",
		Extensions: []string{"ZIG", " .zon "},
	}))
	lang, ok := r.LanguageForFile("build.zig")
	require.True(t, ok)
	assert.Equal(t, "zig", lang)
	lang, _ = r.LanguageForFile("deps.zon")
	assert.Equal(t, "zig", lang)

	// A later registration takes the extension over.
	require.NoError(t, r.Register(ServerConfig{
		Language:   "c3",
		Command:    "c3lsp",
		Extensions: []string{".c"},
	}))
	lang, _ = r.LanguageForFile("parser.c")
	assert.Equal(t, "c3", lang)
}

func TestRegistryExtensionsFor(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	exts := r.ExtensionsFor([]string{"go", "java"})
	assert.Equal(t, []string{".go", ".java"}, exts)

	exts = r.ExtensionsFor([]string{"java", "unknown"})
	assert.Equal(t, []string{".java"}, exts)

	all := r.ExtensionsFor(nil)
	assert.Contains(t, all, ".go")
	assert.Contains(t, all, ".rs")
	assert.Contains(t, all, ".tsx")
}

func TestServerConfigIsHeaderFile(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	cpp, ok := r.Lookup("cpp")
	require.True(t, ok)
	assert.True(t, cpp.IsHeaderFile("include/shape.h"))
	assert.True(t, cpp.IsHeaderFile("include/shape.HPP"))
	assert.False(t, cpp.IsHeaderFile("src/shape.cpp"))

	java, ok := r.Lookup("java")
	require.True(t, ok)
	assert.False(t, java.IsHeaderFile("Shape.java"))
}
