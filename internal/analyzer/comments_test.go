package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for the comment attacher:
// 1. A contiguous run of line comments directly above a declaration
//    concatenates in source order.
// 2. A blank line or a line of code breaks the run.
// 3. Block comments attach verbatim with *-margins stripped; a block
//    trailing code on its opening line attaches nothing.
// 4. Python # comments and Rust /// doc comments use their own markers.

func fileLines(src string) []string {
	return strings.Split(src, "\n")
}

func TestAttachLineCommentRun(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")
	lines := fileLines(`package demo;

// Computes the area.
// Uses the stored radius.
// Never returns a negative value.
double area() {`)

	doc := attachComment(lines, 5, r)
	assert.Equal(t, "Computes the area.\nUses the stored radius.\nNever returns a negative value.", doc)
}

func TestAttachStopsAtBlankLine(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")
	lines := fileLines(`// Orphaned remark.

// Attached remark.
void run() {`)

	assert.Equal(t, "Attached remark.", attachComment(lines, 3, r))
}

func TestAttachStopsAtCode(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")
	lines := fileLines(`int counter = 0; // trailing note
void run() {`)

	assert.Empty(t, attachComment(lines, 1, r))
}

func TestAttachNothingWithoutComment(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")
	lines := fileLines(`int counter = 0;
void run() {`)

	assert.Empty(t, attachComment(lines, 1, r))
	assert.Empty(t, attachComment(lines, 0, r), "first line has nothing above it")
}

func TestAttachBlockComment(t *testing.T) {
	t.Parallel()
	r := rulesFor("java")
	lines := fileLines(`/**
 * Represents a point in 2D space.
 *
 * Coordinates are immutable.
 */
class Point {`)

	doc := attachComment(lines, 5, r)
	assert.Equal(t, "Represents a point in 2D space.\n\nCoordinates are immutable.", doc)
}

func TestAttachSingleLineBlockComment(t *testing.T) {
	t.Parallel()
	r := rulesFor("cpp")
	lines := fileLines(`/* Shared clock for all timers. */
struct Clock {`)

	assert.Equal(t, "Shared clock for all timers.", attachComment(lines, 1, r))
}

func TestAttachBlockTrailingCodeIgnored(t *testing.T) {
	t.Parallel()
	r := rulesFor("cpp")
	lines := fileLines(`int x = compute(); /* cached
   until reload */
struct Clock {`)

	assert.Empty(t, attachComment(lines, 2, r))
}

func TestAttachPythonComments(t *testing.T) {
	t.Parallel()
	r := rulesFor("python")
	lines := fileLines(`# Fetches the payload.
# Retries once on timeout.
def fetch(url):`)

	assert.Equal(t, "Fetches the payload.\nRetries once on timeout.", attachComment(lines, 2, r))
}

func TestAttachRustDocComments(t *testing.T) {
	t.Parallel()
	r := rulesFor("rust")
	lines := fileLines(`/// A bounded queue.
/// Drops the oldest entry when full.
pub struct Ring {`)

	assert.Equal(t, "A bounded queue.\nDrops the oldest entry when full.", attachComment(lines, 2, r))
}
