// Read-only dump of the badger store for debugging a running instance.
// BypassLockGuard lets it open the database while the server holds the lock.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Local mirrors of the repositories' on-disk records. The tool stays
// decoupled so it can dump stores written by any version of the server.
type messageRecord struct {
	ID         string `cbor:"1,keyasint"`
	Conv       string `cbor:"2,keyasint"`
	Sender     string `cbor:"3,keyasint"`
	SenderName string `cbor:"4,keyasint"`
	Content    string `cbor:"5,keyasint"`
	At         int64  `cbor:"6,keyasint"`
}

type userRecord struct {
	ID        string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Email     string `cbor:"3,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"`
}

type groupRecord struct {
	ID      string   `cbor:"1,keyasint"`
	Name    string   `cbor:"2,keyasint"`
	Members []string `cbor:"3,keyasint"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, user:id:, grp:, dmpair:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Name and email lookup keys only hold the user id, skip them
			if strings.HasPrefix(rawKey, "user:name:") || strings.HasPrefix(rawKey, "user:email:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				kind, timestamp, entityID, detail := describe(rawKey, v)
				table.Append([]string{rawKey, kind, timestamp, shortID(entityID), detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func describe(key string, value []byte) (kind, timestamp, entityID, detail string) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var rec messageRecord
		if err := cbor.Unmarshal(value, &rec); err != nil {
			return "MSG", "", "", fmt.Sprintf("decode error: %v", err)
		}
		at := time.Unix(0, rec.At).UTC()
		return "MSG", at.Format("15:04:05"), rec.ID,
			fmt.Sprintf("%s -> %s: %s", rec.SenderName, rec.Conv, rec.Content)

	case strings.HasPrefix(key, "user:id:"):
		var rec userRecord
		if err := cbor.Unmarshal(value, &rec); err != nil {
			return "USER", "", "", fmt.Sprintf("decode error: %v", err)
		}
		at := time.Unix(rec.CreatedAt, 0).UTC()
		return "USER", at.Format("15:04:05"), rec.ID,
			fmt.Sprintf("%s <%s>", rec.Name, rec.Email)

	case strings.HasPrefix(key, "grp:"):
		var rec groupRecord
		if err := cbor.Unmarshal(value, &rec); err != nil {
			return "GROUP", "", "", fmt.Sprintf("decode error: %v", err)
		}
		return "GROUP", "", rec.ID,
			fmt.Sprintf("%s (%d members)", rec.Name, len(rec.Members))

	case strings.HasPrefix(key, "dmpair:"), strings.HasPrefix(key, "grpmember:"):
		return "INDEX", "", "", ""
	}
	return "RAW", "", "", fmt.Sprintf("%d bytes", len(value))
}

func shortID(id string) string {
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
