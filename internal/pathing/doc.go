// Package pathing compiles naming patterns into sanitized library paths.
//
// A pattern is a template of literal path text, placeholders such as
// {Author} and {Title}, and bracket-delimited conditional groups that drop
// out entirely when any placeholder inside them resolves empty. The package
// also owns contributor display formatting (author joining rules, translator
// filtering, narrator truncation) so every path and tag render names the
// same way.
package pathing
