package handler_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	"github.com/temoto/moqu/mq/handler"
)

// syncBuffer is written by child process copier goroutine.
type syncBuffer struct {
	sync.Mutex
	b bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.Lock()
	defer sb.Unlock()
	return sb.b.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.Lock()
	defer sb.Unlock()
	return sb.b.String()
}

func writeScript(t testing.TB, dir, name, body string, mode os.FileMode) {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), mode))
}

func TestExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	// not parallel: fork during script write gives ETXTBSY
	dir := t.TempDir()
	writeScript(t, dir, "handle.note", `echo "note:$1"`, 0755)
	writeScript(t, dir, "handle.fail", `exit 3`, 0755)
	writeScript(t, dir, "handle.noexec", `echo never`, 0644)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "handle.dir"), 0755))

	cases := []struct {
		kind   string
		check  func(error) bool
		expect string
	}{
		{"note", nil, "note:hello world\n"},
		{"fail", nil, ""},
		{"dir", nil, ""},
		{"missing", errors.IsNotFound, ""},
		{"noexec", errors.IsNotValid, ""},
		{"../note", errors.IsNotValid, ""},
		{"sub/note", errors.IsNotValid, ""},
		{"..", errors.IsNotValid, ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.kind, func(t *testing.T) {
			t.Parallel()
			out := &syncBuffer{}
			h := &handler.Exec{Dir: dir, Log: log2.NewTest(t, log2.LDebug), Stdout: out}
			err := h.Handle(mq.Item{Kind: c.kind, Content: "hello world"})
			if c.check == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, c.check(err), "err=%v", err)
			}
			h.Wait()
			assert.Equal(t, c.expect, out.String())
		})
	}
}

func TestExecArgumentVerbatim(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	// not parallel: fork during script write gives ETXTBSY
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out")
	writeScript(t, dir, "handle.k", fmt.Sprintf(`printf '%%s|%%s' "$#" "$1" >%s`, outPath), 0755)

	h := &handler.Exec{Dir: dir, Log: log2.NewTest(t, log2.LDebug)}
	content := `$(rm -rf /) "quoted" ; semicolon`
	require.NoError(t, h.Handle(mq.Item{Kind: "k", Content: content}))
	h.Wait()
	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "1|"+content, string(b))
}

func TestProgramPath(t *testing.T) {
	t.Parallel()
	sep := string(filepath.Separator)
	cases := []struct {
		dir    string
		kind   string
		expect string
	}{
		{"", "note", "." + sep + "handle.note"},
		{".", "note", "." + sep + "handle.note"},
		{"/opt/moqu", "default", filepath.Join("/opt/moqu", "handle.default")},
		{"", "", "." + sep + "handle."},
	}
	for _, c := range cases {
		c := c
		t.Run(c.dir+"/"+c.kind, func(t *testing.T) {
			h := &handler.Exec{Dir: c.dir}
			path, err := h.ProgramPath(c.kind)
			require.NoError(t, err)
			assert.Equal(t, c.expect, path)
		})
	}
}

func TestHandlerFunc(t *testing.T) {
	t.Parallel()
	var got []mq.Item
	var h handler.ItemHandler = handler.HandlerFunc(func(item mq.Item) error {
		got = append(got, item)
		return nil
	})
	require.NoError(t, h.Handle(mq.Item{Kind: "a", Content: "1"}))
	assert.Equal(t, []mq.Item{{Kind: "a", Content: "1"}}, got)
}
