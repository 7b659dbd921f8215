package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/illarion/lockbox/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "encrypt", "enc":
		runProcess(ctx, "encrypt", os.Args[2:])
	case "decrypt", "dec":
		runProcess(ctx, "decrypt", os.Args[2:])
	case "keygen":
		runKeygen(ctx, os.Args[2:])
	case "serve":
		runServe(ctx, os.Args[2:])
	case "secret":
		runSecret(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runProcess(ctx context.Context, name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	keyShort := fs.String("k", "", "Path to a base64 keyfile (instead of a password)")
	keyLong := fs.String("keyfile", "", "Path to a base64 keyfile (instead of a password)")
	outDir := fs.String("o", "", "Output directory (default: next to each input)")
	parallel := fs.Int("j", runtime.NumCPU(), "Number of files processed in parallel")
	removeShort := fs.Bool("r", false, "Remove input files after success")
	removeLong := fs.Bool("remove", false, "Remove input files after success")
	force := fs.Bool("force", false, "Overwrite existing output files")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	keyFile := *keyShort
	if keyFile == "" {
		keyFile = *keyLong
	}

	opts := cmd.Options{
		KeyFile:  keyFile,
		OutDir:   *outDir,
		Parallel: *parallel,
		Remove:   *removeShort || *removeLong,
		Force:    *force,
	}

	if name == "encrypt" {
		cmd.Encrypt(ctx, fs.Args(), opts)
		return
	}
	cmd.Decrypt(ctx, fs.Args(), opts)
}

func runKeygen(_ context.Context, args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("o", "", "Write the keyfile to this path instead of stdout")
	force := fs.Bool("force", false, "Overwrite an existing keyfile")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Keygen(*out, *force)
}

func runServe(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides LOCKBOX_LISTEN_ADDR)")
	envFile := fs.String("env-file", ".env", "Optional dotenv file to load")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Serve(ctx, *envFile, *addr)
}

func runSecret(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lockbox secret <status|forget>")
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		cmd.SecretStatus()
	case "forget":
		cmd.SecretForget()
	default:
		fmt.Fprintf(os.Stderr, "Unknown secret command: %s\n", args[0])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("lockbox - Encrypt and decrypt files with a password or keyfile")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lockbox <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  encrypt     Encrypt files (writes <file>.enc)")
	fmt.Println("  decrypt     Decrypt files (strips .enc)")
	fmt.Println("  keygen      Generate a random 32-byte keyfile")
	fmt.Println("  serve       Run the web upload form")
	fmt.Println("  secret      Manage the web session secret in the OS keyring")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  lockbox encrypt report.pdf           # Prompt for a password")
	fmt.Println("  lockbox keygen -o my.key             # Create a keyfile")
	fmt.Println("  lockbox decrypt -k my.key data.enc   # Decrypt with a keyfile")
	fmt.Println("  lockbox serve                        # Serve on 127.0.0.1:5000")
	fmt.Println()
	fmt.Println("Use 'lockbox help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "encrypt", "decrypt":
		fmt.Printf("lockbox %s [-k keyfile] [-o dir] [-j N] [-r|--remove] [--force] <file> [file...]\n", command)
		fmt.Println()
		if command == "encrypt" {
			fmt.Println("Encrypts files with AES-256-GCM and appends .enc to each name.")
			fmt.Println("Without -k, the key is derived from a password (PBKDF2-HMAC-SHA256).")
		} else {
			fmt.Println("Decrypts .enc files and strips the suffix.")
			fmt.Println("Warns when a decrypted file is inside a git work tree and not ignored.")
		}
		fmt.Println("The password is read from LOCKBOX_PASSWORD, the first line of the file")
		fmt.Println("named by LOCKBOX_PASSWORD_FILE, or prompted for on the terminal.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -k, --keyfile   Base64 keyfile from 'lockbox keygen'")
		fmt.Println("  -o              Output directory (default: next to each input)")
		fmt.Println("  -j              Files processed in parallel (default: number of CPUs)")
		fmt.Println("  -r, --remove    Remove input files after success")
		fmt.Println("      --force     Overwrite existing output files")
		fmt.Println()
		fmt.Println("A file is refused when its output would replace the input itself,")
		fmt.Println("or when two inputs would write the same output.")
	case "keygen":
		fmt.Println("lockbox keygen [-o path] [--force]")
		fmt.Println()
		fmt.Println("Generates a random 32-byte key and prints it as base64.")
		fmt.Println("With -o, writes it to a file readable only by you.")
	case "serve":
		fmt.Println("lockbox serve [--addr host:port] [--env-file path]")
		fmt.Println()
		fmt.Println("Runs the upload form. Configuration is read from the environment:")
		fmt.Println("  LOCKBOX_LISTEN_ADDR     Listen address (default 127.0.0.1:5000)")
		fmt.Println("  LOCKBOX_SECRET_KEY      Flash cookie signing secret (default: OS keyring)")
		fmt.Println("  LOCKBOX_MAX_UPLOAD_MB   Upload limit in MiB (default 32)")
		fmt.Println("  LOCKBOX_LOG_LEVEL       debug, info, warn or error (default info)")
	case "secret":
		fmt.Println("lockbox secret <status|forget>")
		fmt.Println()
		fmt.Println("Shows or removes the session secret 'lockbox serve' keeps in the OS keyring.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
