// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/fauxterm/fauxterm/internal/calc"
	"github.com/fauxterm/fauxterm/internal/vfs"

	"github.com/google/uuid"
)

const (
	defaultPasswordLen = 16
	minPasswordLen     = 4
	maxPasswordLen     = 128
	passwordAlphabet   = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%^&*-_=+"
)

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

func init() {
	textCmd := func(name, use, summary string, run RunFunc) {
		RegisterDefault(NewCommand(name, Spec{
			Category: CategoryText,
			Usage:    use,
			Summary:  summary,
		}, run))
	}

	textCmd("echo", "[text...]", "print text", func(_ context.Context, _ *Env, args []string) (Output, error) {
		return Lines(strings.Join(args[1:], " ")), nil
	})
	textCmd("base64", "<encode|decode> <text...>", "base64 encode or decode text", runBase64)
	textCmd("urlencode", "<encode|decode> <text...>", "percent-encode or decode text", runURLEncode)
	textCmd("hash", "<md5|sha1|sha256|sha512> <text...>", "print the hex digest of text", runHash)
	textCmd("uuid", "[count]", "generate random UUIDs", runUUID)
	textCmd("password", "[length]", "generate a random password", runPassword)
	textCmd("calc", "<expression...>", "evaluate an arithmetic expression", runCalc)
	textCmd("jsonlint", "<json...|file>", "validate and pretty-print JSON", runJSONLint)
	textCmd("js", "", "start the interactive calculator (.exit to leave)", runJS)
}

// splitMode parses the "<encode|decode> <text...>" shape shared by the
// codec commands.
func splitMode(env *Env, args []string) (decode bool, text string, err error) {
	if len(args) < 3 {
		return false, "", env.Usage()
	}
	switch args[1] {
	case "encode", "-e":
	case "decode", "-d":
		decode = true
	default:
		return false, "", env.Usage()
	}
	return decode, strings.Join(args[2:], " "), nil
}

func runBase64(_ context.Context, env *Env, args []string) (Output, error) {
	decode, text, err := splitMode(env, args)
	if err != nil {
		return Output{}, err
	}
	if !decode {
		return Lines(base64.StdEncoding.EncodeToString([]byte(text))), nil
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(text); err != nil {
			return Output{}, errors.New("invalid base64 input")
		}
	}
	return Text(string(data)), nil
}

func runURLEncode(_ context.Context, env *Env, args []string) (Output, error) {
	decode, text, err := splitMode(env, args)
	if err != nil {
		return Output{}, err
	}
	if !decode {
		return Lines(url.QueryEscape(text)), nil
	}
	s, err := url.QueryUnescape(text)
	if err != nil {
		return Output{}, fmt.Errorf("invalid input: %w", err)
	}
	return Lines(s), nil
}

func runHash(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 3 {
		return Output{}, env.Usage()
	}
	newHash, ok := hashes[strings.ToLower(args[1])]
	if !ok {
		return Output{}, env.Usage()
	}
	h := newHash()
	h.Write([]byte(strings.Join(args[2:], " ")))
	return Lines(hex.EncodeToString(h.Sum(nil))), nil
}

func runUUID(_ context.Context, env *Env, args []string) (Output, error) {
	n := 1
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 || v > 20 {
			return Output{}, env.Usage()
		}
		n = v
	}
	lines := make([]string, n)
	for i := range lines {
		lines[i] = uuid.NewString()
	}
	return Output{Lines: lines}, nil
}

func runPassword(_ context.Context, env *Env, args []string) (Output, error) {
	n := defaultPasswordLen
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < minPasswordLen || v > maxPasswordLen {
			return Output{}, fmt.Errorf("length must be between %d and %d", minPasswordLen, maxPasswordLen)
		}
		n = v
	}
	pw, err := randomString(n, passwordAlphabet)
	if err != nil {
		return Output{}, err
	}
	return Lines(pw), nil
}

func randomString(n int, alphabet string) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

func runCalc(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	v, err := calc.Eval(strings.Join(args[1:], " "))
	if err != nil {
		return Output{}, err
	}
	return Lines(calc.Format(v)), nil
}

func runJSONLint(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	input := strings.Join(args[1:], " ")
	if len(args) == 2 && !env.Identity().IsGuest() {
		if e, ok := env.FS.Get(env.Resolve(args[1])); ok {
			if f, isFile := e.(vfs.File); isFile {
				input = f.Content
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(input), "", "  "); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return Output{}, fmt.Errorf("invalid JSON at offset %d: %v", se.Offset, se)
		}
		return Output{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return Output{Lines: append([]string{"valid JSON"}, splitLines(buf.String())...)}, nil
}

func runJS(_ context.Context, env *Env, _ []string) (Output, error) {
	s := env.Session
	s.mode = ModeREPL
	s.repl = calc.NewEnv()
	return Output{
		Lines: []string{
			"Calculator REPL. Arithmetic only; assign with name = expr, the last result is 'ans'.",
			"Type .help for help or .exit to leave.",
		},
		Special: SpecialEnterREPL,
	}, nil
}
