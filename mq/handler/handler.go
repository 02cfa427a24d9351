// Package handler delivers received items to external programs.
package handler

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
)

const ProgramPrefix = "handle."

type ItemHandler interface {
	Handle(mq.Item) error
}

type HandlerFunc func(mq.Item) error

func (f HandlerFunc) Handle(item mq.Item) error { return f(item) }

// Exec runs Dir/handle.<kind> with item content as single argument.
// Program is not waited for, exit status is only logged.
type Exec struct {
	Dir    string
	Log    *log2.Log
	Stdout io.Writer // default os.Stdout
	Stderr io.Writer // default os.Stderr

	running sync.WaitGroup
}

var _ ItemHandler = (*Exec)(nil)

func (e *Exec) Handle(item mq.Item) error {
	path, err := e.ProgramPath(item.Kind)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundf("handler %s", path)
		}
		return errors.Annotate(err, "handler stat")
	}
	if !fi.Mode().IsRegular() {
		e.Log.Debugf("handler %s mode=%s not regular file, ignore kind=%s", path, fi.Mode(), item.Kind)
		return nil
	}
	if fi.Mode().Perm()&0111 == 0 {
		return errors.NotValidf("handler %s mode=%s not executable", path, fi.Mode())
	}

	cmd := exec.Command(path, item.Content)
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err = cmd.Start(); err != nil {
		return errors.Annotatef(err, "handler %s start", path)
	}
	e.Log.Debugf("handler %s pid=%d started", path, cmd.Process.Pid)

	e.running.Add(1)
	go func() {
		defer e.running.Done()
		if err := cmd.Wait(); err != nil {
			e.Log.Errorf("handler %s pid=%d err=%v", path, cmd.Process.Pid, err)
		}
	}()
	return nil
}

// ProgramPath rejects kinds which could escape Dir.
func (e *Exec) ProgramPath(kind string) (string, error) {
	if strings.ContainsAny(kind, `/\`) || strings.Contains(kind, "..") || strings.ContainsRune(kind, 0) {
		return "", errors.NotValidf("item kind=%q", kind)
	}
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ProgramPrefix+kind)
	// exec.Command must not search PATH
	if !strings.ContainsRune(path, filepath.Separator) {
		path = "." + string(filepath.Separator) + path
	}
	return path, nil
}

// Wait blocks until all started programs have exited.
func (e *Exec) Wait() { e.running.Wait() }
