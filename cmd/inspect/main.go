// Command inspect dumps conversations and messages from a badger store
// in read-only mode. Debugging tool; never run it against a store a
// live server holds open without the lock guard bypass.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type settings struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"/tmp/yalla-chat"`
}

type diskConversation struct {
	ID        string `json:"id"`
	Low       string `json:"low"`
	High      string `json:"high"`
	Kind      string `json:"kind"`
	SubjectID string `json:"subjectId"`
	UpdatedAt string `json:"updatedAt"`
}

type diskMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
	At             string `json:"at"`
}

func main() {
	var cfg settings
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Error while reading settings: ", err)
	}

	dbPath := flag.String("db", cfg.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "conv:", "Prefix to scan (conv: or msg:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	switch {
	case strings.HasPrefix(*prefix, "conv:"):
		err = dumpConversations(db, *prefix)
	case strings.HasPrefix(*prefix, "msg:"):
		err = dumpMessages(db, *prefix)
	default:
		err = fmt.Errorf("unsupported prefix %q", *prefix)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func dumpConversations(db *badger.DB, prefix string) error {
	color.Cyan.Println("Conversations")

	table := newTable([]string{"Key", "ID", "Low", "High", "Subject", "Updated"})
	err := scan(db, prefix, func(key string, value []byte) {
		var conv diskConversation
		if err := json.Unmarshal(value, &conv); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return
		}
		table.Append([]string{
			key,
			shorten(conv.ID),
			conv.Low,
			conv.High,
			conv.Kind + ":" + conv.SubjectID,
			conv.UpdatedAt,
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func dumpMessages(db *badger.DB, prefix string) error {
	color.Cyan.Println("Messages")

	table := newTable([]string{"Key", "ID", "Sender", "Read", "At", "Content"})
	err := scan(db, prefix, func(key string, value []byte) {
		var message diskMessage
		if err := json.Unmarshal(value, &message); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return
		}
		read := color.Red.Sprint("unread")
		if message.Read {
			read = color.Green.Sprint("read")
		}
		table.Append([]string{
			key,
			shorten(message.ID),
			message.SenderID,
			read,
			message.At,
			message.Content,
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

// scan walks a prefix, skipping the uniqueness and membership indexes
// whose values are bare references, not records.
func scan(db *badger.DB, prefix string, visit func(key string, value []byte)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if strings.HasPrefix(key, "convkey:") || strings.HasPrefix(key, "uconv:") {
				continue
			}
			err := item.Value(func(v []byte) error {
				visit(key, v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
