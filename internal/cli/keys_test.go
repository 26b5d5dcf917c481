package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func assertFlags(t *testing.T, cmd *cobra.Command, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q to be registered on %s", name, cmd.Name())
			}
		})
	}
}

// TestVerifyCmd_FlagsExist checks presence
func TestVerifyCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetVerifyCmd(), "root", "revocation")

	if GetVerifyCmd().Flags().Lookup("key") != nil {
		t.Error("verify should not take a private key")
	}
}

// TestSignCmd_FlagsExist checks presence
func TestSignCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetSignCmd(), "key", "chain", "root", "revocation", "output")
}

// TestKeygenCmd_FlagsExist checks presence
func TestKeygenCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetKeygenCmd(), "dir")
}

func TestGenerateCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetGenerateCmd(),
		"url", "author", "collection",
		"name", "overview", "keyword", "revision", "author-name",
		"output", "policy", "preset", "sign", "key", "chain",
	)
}

func TestReconcileCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetReconcileCmd(), "main-only", "collections-only", "collection")
}

func TestPublishCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetPublishCmd(), "insecure", "skip-verify", "root")
	assertFlags(t, GetPullCmd(), "insecure", "output", "verify")
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-format", "log-level", "receipt", "receipt-mode"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q", name)
		}
	}
}
