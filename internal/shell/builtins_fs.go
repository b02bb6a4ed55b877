// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/fauxterm/fauxterm/internal/vfs"
	"github.com/fauxterm/fauxterm/pkg/vpath"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	errNoEntry   = errors.New("No such file or directory")
	errExists    = errors.New("File exists")
	errIsDir     = errors.New("Is a directory")
	errNotDir    = errors.New("Not a directory")
	errNotEmpty  = errors.New("Directory not empty")
	errUnchanged = errors.New("unchanged")
)

type wcCounts struct {
	lines int64
	words int64
	bytes int64
	chars int64
}

func init() {
	fsCmd := func(name, use, summary string, run RunFunc, flags ...FlagInfo) {
		RegisterDefault(NewCommand(name, Spec{
			Category:  CategoryFiles,
			Privilege: PrivilegeUser,
			Usage:     use,
			Summary:   summary,
			Flags:     flags,
		}, run))
	}

	fsCmd("ls", "[path...]", "list directory contents", runLs)
	fsCmd("cat", "<file...>", "print file contents", runCat)
	fsCmd("cd", "[dir]", "change the current directory", runCd)
	fsCmd("mkdir", "<dir...>", "create directories", runMkdir)
	fsCmd("touch", "<file...>", "create empty files", runTouch)
	fsCmd("rm", "[-r] [-f] <path...>", "remove files or directories", runRm,
		FlagInfo{Name: "r", Description: "remove directories and their contents"},
		FlagInfo{Name: "f", Description: "ignore missing paths"})
	fsCmd("grep", "[-i] [-n] <pattern> <file...>", "print lines matching a pattern", runGrep,
		FlagInfo{Name: "i", Description: "ignore case"},
		FlagInfo{Name: "n", Description: "prefix lines with their number"})
	fsCmd("wc", "[-l] [-w] [-c] [-m] <file...>", "count lines, words and bytes", runWc,
		FlagInfo{Name: "l", Description: "print line count"},
		FlagInfo{Name: "w", Description: "print word count"},
		FlagInfo{Name: "c", Description: "print byte count"},
		FlagInfo{Name: "m", Description: "print character count"})
	fsCmd("tree", "[dir]", "show a directory tree", runTree)
	fsCmd("head", "[-n N] <file>", "print the first lines of a file", runHead,
		FlagInfo{Name: "n", Description: "number of lines to print", TakesValue: true})
	fsCmd("find", "[dir] [-name glob] [-type f|d]", "search for files by name", runFind,
		FlagInfo{Name: "name", Description: "match names (or paths, with /) against a glob", TakesValue: true},
		FlagInfo{Name: "type", Description: "f for files, d for directories", TakesValue: true})
	fsCmd("write", "<file> <text...>", `write text to a file (\n starts a new line)`, runWrite)

	RegisterDefault(NewCommand("pwd", Spec{
		Category: CategoryFiles,
		Summary:  "print the current directory",
	}, func(_ context.Context, env *Env, _ []string) (Output, error) {
		return Lines(env.Session.cwd.String()), nil
	}))
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runLs(_ context.Context, env *Env, args []string) (Output, error) {
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}
	targets := args[1:]
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var lines []string
	for idx, arg := range targets {
		p := env.Resolve(arg)
		e, ok := tree.Get(p)
		if !ok {
			lines = append(lines, fmt.Sprintf("ls: cannot access '%s': %v", arg, errNoEntry))
			continue
		}
		dir, isDir := e.(*vfs.Directory)
		if !isDir {
			lines = append(lines, p.Base())
			continue
		}
		if len(targets) > 1 {
			if idx > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, arg+":")
		}
		for _, name := range dir.Names() {
			if vfs.IsDir(dir.Children[name]) {
				name += "/"
			}
			lines = append(lines, name)
		}
	}
	return Output{Lines: lines}, nil
}

func runCat(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}

	var lines []string
	for _, arg := range args[1:] {
		content, err := readFile(tree, env.Resolve(arg))
		if err != nil {
			lines = append(lines, fmt.Sprintf("cat: %s: %v", arg, err))
			continue
		}
		if content != "" {
			lines = append(lines, splitLines(content)...)
		}
	}
	return Output{Lines: lines}, nil
}

func readFile(tree *vfs.Tree, p vpath.Path) (string, error) {
	e, ok := tree.Get(p)
	if !ok {
		return "", errNoEntry
	}
	f, isFile := e.(vfs.File)
	if !isFile {
		return "", errIsDir
	}
	return f.Content, nil
}

func runCd(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	target := string(vpath.Root)
	if len(args) == 2 {
		target = args[1]
	}
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}

	p := env.Resolve(target)
	e, ok := tree.Get(p)
	if !ok {
		return Output{}, fmt.Errorf("%s: %w", target, errNoEntry)
	}
	if !vfs.IsDir(e) {
		return Output{}, fmt.Errorf("%s: %w", target, errNotDir)
	}
	env.Session.cwd = p
	return Output{}, nil
}

func runMkdir(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	var lines []string
	for _, arg := range args[1:] {
		p := env.Resolve(arg)
		err := env.FS.Mutate(ctx, func(t *vfs.Tree) error {
			if _, exists := t.Get(p); exists {
				return errExists
			}
			if !t.Set(p, vfs.NewDirectory()) {
				return errNoEntry
			}
			return nil
		})
		if err != nil {
			lines = append(lines, fmt.Sprintf("mkdir: cannot create directory '%s': %v", arg, err))
		}
	}
	return Output{Lines: lines}, nil
}

func runTouch(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	var lines []string
	for _, arg := range args[1:] {
		p := env.Resolve(arg)
		err := env.FS.Mutate(ctx, func(t *vfs.Tree) error {
			if _, exists := t.Get(p); exists {
				return errUnchanged
			}
			if !t.Set(p, vfs.File{}) {
				return errNoEntry
			}
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) {
			lines = append(lines, fmt.Sprintf("touch: cannot touch '%s': %v", arg, err))
		}
	}
	return Output{Lines: lines}, nil
}

func runRm(ctx context.Context, env *Env, args []string) (Output, error) {
	var recursive, force bool
	var targets []string
	for _, a := range args[1:] {
		if len(a) > 1 && a[0] == '-' && len(targets) == 0 {
			for _, c := range a[1:] {
				switch c {
				case 'r', 'R':
					recursive = true
				case 'f':
					force = true
				default:
					return Output{}, env.Usage()
				}
			}
			continue
		}
		targets = append(targets, a)
	}
	if len(targets) == 0 {
		return Output{}, env.Usage()
	}

	var lines []string
	for _, arg := range targets {
		p := env.Resolve(arg)
		if p.IsRoot() {
			lines = append(lines, fmt.Sprintf("rm: refusing to remove '%s'", arg))
			continue
		}
		err := env.FS.Mutate(ctx, func(t *vfs.Tree) error {
			e, ok := t.Get(p)
			if !ok {
				return errNoEntry
			}
			if dir, isDir := e.(*vfs.Directory); isDir && dir.Len() > 0 && !recursive {
				return errNotEmpty
			}
			if !t.Delete(p) {
				return errNoEntry
			}
			return nil
		})
		switch {
		case err == nil:
			if env.Session.cwd.HasPrefix(p) {
				env.Session.cwd, _ = p.Split()
			}
		case force && errors.Is(err, errNoEntry):
		default:
			lines = append(lines, fmt.Sprintf("rm: cannot remove '%s': %v", arg, err))
		}
	}
	return Output{Lines: lines}, nil
}

func runGrep(_ context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("grep")
	ignoreCase := fs.Bool("i", false, "ignore case")
	numbers := fs.Bool("n", false, "line numbers")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() < 2 {
		return Output{}, env.Usage()
	}
	pattern, files := fs.Arg(0), fs.Args()[1:]

	re, err := compilePattern(pattern, *ignoreCase)
	if err != nil {
		return Output{}, err
	}
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}

	var lines []string
	for _, arg := range files {
		content, err := readFile(tree, env.Resolve(arg))
		if err != nil {
			lines = append(lines, fmt.Sprintf("grep: %s: %v", arg, err))
			continue
		}
		for n, line := range splitLines(content) {
			if !re.MatchString(line) {
				continue
			}
			if *numbers {
				line = fmt.Sprintf("%d:%s", n+1, line)
			}
			if len(files) > 1 {
				line = arg + ":" + line
			}
			lines = append(lines, line)
		}
	}
	return Output{Lines: lines}, nil
}

// compilePattern treats pattern as a regular expression, falling back to a
// literal match when it does not compile.
func compilePattern(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	prefix := ""
	if ignoreCase {
		prefix = "(?i)"
	}
	re, err := regexp.Compile(prefix + pattern)
	if err == nil {
		return re, nil
	}
	return regexp.Compile(prefix + regexp.QuoteMeta(pattern))
}

func runWc(_ context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("wc")
	showLines := fs.Bool("l", false, "print line count")
	showWords := fs.Bool("w", false, "print word count")
	showBytes := fs.Bool("c", false, "print byte count")
	showChars := fs.Bool("m", false, "print character count")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() == 0 {
		return Output{}, env.Usage()
	}

	// If no flags specified, show lines, words, and bytes
	if !*showLines && !*showWords && !*showBytes && !*showChars {
		*showLines, *showWords, *showBytes = true, true, true
	}

	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}

	var (
		lines []string
		total wcCounts
	)
	format := func(c wcCounts, name string) string {
		var parts []string
		if *showLines {
			parts = append(parts, fmt.Sprintf("%7d", c.lines))
		}
		if *showWords {
			parts = append(parts, fmt.Sprintf("%7d", c.words))
		}
		if *showBytes {
			parts = append(parts, fmt.Sprintf("%7d", c.bytes))
		}
		if *showChars && !*showBytes { // -c takes precedence over -m
			parts = append(parts, fmt.Sprintf("%7d", c.chars))
		}
		return strings.Join(parts, " ") + " " + name
	}

	for _, arg := range fs.Args() {
		content, err := readFile(tree, env.Resolve(arg))
		if err != nil {
			lines = append(lines, fmt.Sprintf("wc: %s: %v", arg, err))
			continue
		}
		c := countText(content)
		total.lines += c.lines
		total.words += c.words
		total.bytes += c.bytes
		total.chars += c.chars
		lines = append(lines, format(c, arg))
	}
	if fs.NArg() > 1 {
		lines = append(lines, format(total, "total"))
	}
	return Output{Lines: lines}, nil
}

func countText(s string) wcCounts {
	var counts wcCounts
	reader := bufio.NewReader(strings.NewReader(s))
	inWord := false
	for {
		ru, size, err := reader.ReadRune()
		if err != nil {
			break
		}
		counts.bytes += int64(size)
		counts.chars++
		if ru == '\n' {
			counts.lines++
		}
		if unicode.IsSpace(ru) {
			inWord = false
		} else if !inWord {
			inWord = true
			counts.words++
		}
	}
	return counts
}

func runTree(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	arg := "."
	if len(args) == 2 {
		arg = args[1]
	}
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}
	p := env.Resolve(arg)
	e, ok := tree.Get(p)
	if !ok {
		return Output{}, fmt.Errorf("%s: %w", arg, errNoEntry)
	}
	dir, isDir := e.(*vfs.Directory)
	if !isDir {
		return Output{}, fmt.Errorf("%s: %w", arg, errNotDir)
	}

	lines := []string{p.String()}
	var dirs, files int
	var draw func(d *vfs.Directory, indent string)
	draw = func(d *vfs.Directory, indent string) {
		names := d.Names()
		for idx, name := range names {
			connector, next := "├── ", "│   "
			if idx == len(names)-1 {
				connector, next = "└── ", "    "
			}
			child := d.Children[name]
			lines = append(lines, indent+connector+name)
			if sub, ok := child.(*vfs.Directory); ok {
				dirs++
				draw(sub, indent+next)
			} else {
				files++
			}
		}
	}
	draw(dir, "")
	lines = append(lines, "", fmt.Sprintf("%d %s, %d %s", dirs, plural(dirs, "directory", "directories"), files, plural(files, "file", "files")))
	return Output{Lines: lines}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func runHead(_ context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("head")
	n := fs.Int("n", 10, "number of lines")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 || *n < 0 {
		return Output{}, env.Usage()
	}
	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}
	content, err := readFile(tree, env.Resolve(fs.Arg(0)))
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	lines := splitLines(content)
	if content == "" {
		lines = nil
	}
	if len(lines) > *n {
		lines = lines[:*n]
	}
	return Output{Lines: lines}, nil
}

func runFind(_ context.Context, env *Env, args []string) (Output, error) {
	rest := args[1:]
	start := "."
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		start, rest = rest[0], rest[1:]
	}
	fs := newFlagSet("find")
	pattern := fs.String("name", "", "glob")
	kind := fs.String("type", "", "f or d")
	if err := fs.Parse(rest); err != nil || fs.NArg() > 0 {
		return Output{}, env.Usage()
	}
	if *kind != "" && *kind != "f" && *kind != "d" {
		return Output{}, env.Usage()
	}
	if *pattern != "" && !doublestar.ValidatePattern(*pattern) {
		return Output{}, fmt.Errorf("invalid pattern %q", *pattern)
	}

	tree, err := env.snapshot()
	if err != nil {
		return Output{}, err
	}
	var lines []string
	err = tree.Walk(env.Resolve(start), func(p vpath.Path, e vfs.Entry) error {
		isDir := vfs.IsDir(e)
		if (*kind == "f" && isDir) || (*kind == "d" && !isDir) {
			return nil
		}
		if *pattern != "" {
			subject := p.Base()
			if strings.Contains(*pattern, "/") {
				subject = strings.Join(p.Segments(), "/")
			}
			if ok, _ := doublestar.Match(*pattern, subject); !ok {
				return nil
			}
		}
		lines = append(lines, p.String())
		return nil
	})
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", start, errNoEntry)
	}
	return Output{Lines: lines}, nil
}

func runWrite(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 3 {
		return Output{}, env.Usage()
	}
	p := env.Resolve(args[1])
	content := strings.ReplaceAll(strings.Join(args[2:], " "), `\n`, "\n")
	err := env.FS.Mutate(ctx, func(t *vfs.Tree) error {
		if e, exists := t.Get(p); exists && vfs.IsDir(e) {
			return errIsDir
		}
		if !t.Set(p, vfs.File{Content: content}) {
			return errNoEntry
		}
		return nil
	})
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", args[1], err)
	}
	return Output{}, nil
}
