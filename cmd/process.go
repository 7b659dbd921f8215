package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/illarion/lockbox/internal/core"
	"github.com/illarion/lockbox/internal/crypto"
	"github.com/illarion/lockbox/internal/git"
	"github.com/illarion/lockbox/internal/security"
)

// Options controls a batch encrypt or decrypt run
type Options struct {
	KeyFile  string // path to a base64 keyfile; empty means password
	OutDir   string // empty means next to each input
	Parallel int
	Remove   bool
	Force    bool // replace existing outputs
}

var (
	ErrOutputIsInput   = errors.New("output would replace the input")
	ErrOutputCollision = errors.New("another input writes the same output")
)

// Result is the outcome of processing one file
type Result struct {
	Input  string
	Output string
	Err    error
	Hint   string
}

// Encrypt encrypts files and exits non-zero if any failed
func Encrypt(ctx context.Context, files []string, opts Options) {
	run(ctx, core.ActionEncrypt, files, opts)
}

// Decrypt decrypts files and exits non-zero if any failed
func Decrypt(ctx context.Context, files []string, opts Options) {
	outputs := run(ctx, core.ActionDecrypt, files, opts)

	if cwd, err := os.Getwd(); err == nil && len(outputs) > 0 {
		fmt.Fprint(os.Stderr, git.FormatWarnings(git.CheckPlaintext(cwd, outputs)))
	}
}

func run(ctx context.Context, action core.Action, files []string, opts Options) []string {
	if len(files) == 0 {
		HandleError(core.ErrNoFile)
	}

	secret, err := loadSecret(action, opts)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(secret.password)

	results, err := ProcessFiles(ctx, action, files, secret, opts)
	if err != nil {
		HandleError(err)
	}

	var (
		outputs []string
		failed  int
	)
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error: %s: %s\n", r.Input, describe(r.Err))
			if r.Hint != "" {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", r.Hint)
			}
			continue
		}
		outputs = append(outputs, r.Output)
		fmt.Printf("%sed: %s -> %s\n", action, r.Input, r.Output)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d file(s) failed\n", failed, len(results))
		os.Exit(1)
	}
	return outputs
}

// Secret is the password or keyfile text used for a batch
type Secret struct {
	password []byte
	keyFile  []byte
}

func loadSecret(action core.Action, opts Options) (Secret, error) {
	if opts.KeyFile != "" {
		text, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return Secret{}, fmt.Errorf("failed to read keyfile: %w", err)
		}
		return Secret{keyFile: text}, nil
	}

	password, err := GetPassword(action == core.ActionEncrypt)
	if err != nil {
		return Secret{}, err
	}
	return Secret{password: password}, nil
}

// ProcessFiles runs every file through core.Process with bounded parallelism.
// Results are returned in input order. The returned error is set only when
// output directories cannot be opened; per-file failures are in the results.
func ProcessFiles(ctx context.Context, action core.Action, files []string, secret Secret, opts Options) ([]Result, error) {
	dirs, err := openOutputDirs(files, opts.OutDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, d := range dirs {
			d.Close()
		}
	}()

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	results := planOutputs(action, files, dirs, opts.OutDir)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, file := range files {
		if results[i].Err != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Input: file, Err: err}
				return nil
			}
			results[i] = processFile(action, file, dirs[outDirKey(file, opts.OutDir)], secret, opts)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// planOutputs rejects inputs whose output is the input itself or is shared
// with an earlier input. Accepted entries carry no error yet.
func planOutputs(action core.Action, files []string, dirs map[string]*security.OutputDir, outDir string) []Result {
	results := make([]Result, len(files))
	owner := make(map[string]string, len(files))

	for i, file := range files {
		results[i].Input = file
		dir := dirs[outDirKey(file, outDir)]
		out := filepath.Join(dir.Path(), core.OutputName(filepath.Base(file), action))

		in, err := filepath.Abs(file)
		if err != nil {
			results[i].Err = err
			continue
		}
		if in == out {
			results[i].Err = fmt.Errorf("%w: %s", ErrOutputIsInput, file)
			if action == core.ActionDecrypt {
				results[i].Hint = "name the file with a .enc suffix or pass -o"
			}
			continue
		}
		if prev, ok := owner[out]; ok {
			results[i].Err = fmt.Errorf("%w: %s and %s both write %s", ErrOutputCollision, prev, file, out)
			continue
		}
		owner[out] = file
	}
	return results
}

func processFile(action core.Action, file string, dir *security.OutputDir, secret Secret, opts Options) Result {
	result := Result{Input: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Err = fmt.Errorf("failed to read: %w", err)
		return result
	}

	res, err := core.Process(core.Request{
		Action:   action,
		Filename: filepath.Base(file),
		Data:     data,
		Password: secret.password,
		KeyFile:  secret.keyFile,
	})
	if err != nil {
		result.Err = err
		if errors.Is(err, crypto.ErrFormat) {
			result.Hint = formatHint(data, secret)
		}
		return result
	}
	if action == core.ActionDecrypt {
		defer crypto.ClearBytes(res.Data)
	}

	write := dir.CreateFileAtomic
	if opts.Force {
		write = dir.WriteFileAtomic
	}
	if err := write(res.Filename, res.Data, 0600); err != nil {
		result.Err = err
		if errors.Is(err, fs.ErrExist) {
			result.Hint = "pass --force to overwrite"
		}
		return result
	}
	result.Output = filepath.Join(dir.Path(), res.Filename)

	if opts.Remove {
		if sameFile(file, result.Output) {
			result.Err = fmt.Errorf("%w: %s", ErrOutputIsInput, file)
			return result
		}
		if err := os.Remove(file); err != nil {
			result.Err = fmt.Errorf("written %s but failed to remove input: %w", result.Output, err)
		}
	}
	return result
}

func sameFile(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// formatHint explains a tag mismatch when data is an envelope of the other kind
func formatHint(data []byte, secret Secret) string {
	variant, err := crypto.DetectVariant(data)
	switch {
	case err != nil:
		return ""
	case variant == crypto.VariantKey && secret.keyFile == nil:
		return "file was encrypted with a keyfile, pass -k"
	case variant == crypto.VariantPassword && secret.keyFile != nil:
		return "file was encrypted with a password, omit -k"
	default:
		return ""
	}
}

// describe hides envelope parsing detail the same way the web form does
func describe(err error) string {
	switch {
	case errors.Is(err, core.ErrInput):
		return err.Error()
	case errors.Is(err, crypto.ErrFormat),
		errors.Is(err, crypto.ErrAuthentication),
		errors.Is(err, crypto.ErrKeyLength):
		return core.UserMessage(err)
	default:
		return err.Error()
	}
}

func outDirKey(file, outDir string) string {
	if outDir != "" {
		return outDir
	}
	return filepath.Dir(file)
}

func openOutputDirs(files []string, outDir string) (map[string]*security.OutputDir, error) {
	dirs := make(map[string]*security.OutputDir)
	for _, file := range files {
		key := outDirKey(file, outDir)
		if _, ok := dirs[key]; ok {
			continue
		}
		d, err := security.New(key)
		if err != nil {
			for _, opened := range dirs {
				opened.Close()
			}
			return nil, err
		}
		dirs[key] = d
	}
	return dirs, nil
}
