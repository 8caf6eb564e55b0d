package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App implements
// it; tests use a stub.
type execIface interface {
	isUnlocked() bool

	SetKey(ctx context.Context, args []string) error
	GenKey(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error
	Forget(ctx context.Context, args []string) error
	AutoEncrypt(ctx context.Context, args []string) error

	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Tags(ctx context.Context, args []string) error

	Backup(ctx context.Context, args []string) error
	Backups(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	RemoveBackup(ctx context.Context, args []string) error

	Audit(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  setkey                      set a new master key
  genkey                      generate, set and unlock a random master key
  unlock / lock               unlock or lock the session
  forget                      remove the master key
  autoencrypt on|off          encrypt new memories by default
  add [text|audio|photo|video] add a memory
  list [limit] [offset]       list memories, newest first
  show <id>                   show a memory, decrypting it if needed
  delete <id>                 delete a memory
  tags                        list tags with their counts
  backup [-media] [-compress] [-encrypt]
  backups                     list stored backups
  restore <id|file>           restore a backup
  rmbackup <id>               delete a stored backup
  audit [-action a] [-user u] [-limit n] [-export file]
  verify                      check the audit chain
  exit | quit`

type command func(context.Context, []string) error

func commands(a execIface) map[string]command {
	return map[string]command{
		"setkey":      a.SetKey,
		"genkey":      a.GenKey,
		"unlock":      a.Unlock,
		"lock":        a.Lock,
		"forget":      a.Forget,
		"autoencrypt": a.AutoEncrypt,
		"add":         a.Add,
		"l":           a.List,
		"list":        a.List,
		"show":        a.Show,
		"delete":      a.Delete,
		"tags":        a.Tags,
		"backup":      a.Backup,
		"backups":     a.Backups,
		"restore":     a.Restore,
		"rmbackup":    a.RemoveBackup,
		"audit":       a.Audit,
		"verify":      a.Verify,
	}
}

// runREPL reads commands from scanner until EOF, "exit" or "quit". Errors
// from handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	table := commands(a)

	for {
		printlnFn(fmt.Sprintf("almacen %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			fn, ok := table[cmd]
			if !ok {
				printlnFn("Unknown command:", cmd)
				continue
			}
			if err := fn(ctx, args); err != nil {
				printlnFn("Error:", describe(err))
			}
		}
	}
}
