package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_New(t *testing.T) {
	t.Log("Given the need to write structured logs.")
	{
		t.Logf("\tTest 0:\tWhen logging to a file.")
		{
			path := filepath.Join(t.TempDir(), "node.log")

			log, err := logger.New("TEST", path)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the logger: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to construct the logger.", success)

			log.Infow("startup", "status", "running")
			log.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to read the log: %v", failed, err)
			}

			var entry map[string]any
			if err := json.Unmarshal(data, &entry); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould write a json entry: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould write a json entry.", success)

			if entry["service"] != "TEST" || entry["status"] != "running" || entry["timestamp"] == nil {
				t.Logf("\t%s\tTest 0:\tgot: %v", failed, entry)
				t.Fatalf("\t%s\tTest 0:\tShould carry the service and fields.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould carry the service and fields.", success)
		}
	}
}
