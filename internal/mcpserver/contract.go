package mcpserver

// ExcludeFormatContract describes the ignore-rule file read from the root
// of every tree.
const ExcludeFormatContract = `# dirtools Exclude File Format

The file ` + "`" + `.exclude` + "`" + ` at the root of the tree lists paths that every operation
skips: listing, hashing, snapshots and archives.

## Rules

1. One glob pattern per line. Leading and trailing whitespace is trimmed and blank
   lines are ignored. There are no comments, negations or anchors.
2. Paths are relative to the root and use forward slashes.
3. ` + "`" + `*` + "`" + ` matches any run of characters, including ` + "`" + `/` + "`" + `. ` + "`" + `?` + "`" + ` matches one character and
   ` + "`" + `[abc]` + "`" + ` matches a character class.
4. A pattern excludes a path when it matches the whole relative path, or when it
   matches the path's final segment (` + "`" + `*.pyc` + "`" + ` excludes ` + "`" + `a/b/c.pyc` + "`" + `).
5. A pattern ending in ` + "`" + `/` + "`" + ` is meant for directories. It is matched against the
   whole relative path only, never the final segment. Everything below an excluded
   directory is skipped.
6. The exclude file itself is a regular file and is included unless a rule excludes it.
7. Rules are read when an operation starts; edits apply to the next operation.

## Example

` + "```" + `
excluded_dir/
*.pyc
build/*
` + "```" + `

With these rules ` + "`" + `excluded_dir` + "`" + ` and all its content, every ` + "`" + `.pyc` + "`" + ` file and every
path under ` + "`" + `build/` + "`" + ` are excluded.
`
