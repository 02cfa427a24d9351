package publish

import (
	"context"
	"flag"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/moqu/cmd/moqu/subcmd"
	"github.com/temoto/moqu/helpers/cli"
	"github.com/temoto/moqu/mq"
	mq_config "github.com/temoto/moqu/mq/config"
	mqnet "github.com/temoto/moqu/mq/net"
)

const DefaultKind = "default"

var Mod = subcmd.Mod{Name: "publish", Usage: "publish -k kind -m message", Main: Main}
var ShellMod = subcmd.Mod{Name: "shell", Usage: "publish lines from prompt or stdin, `kind: content` selects kind", Main: ShellMain}

func Main(ctx context.Context, config *mq_config.Config, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	kind := fs.String("k", DefaultKind, "item kind, selects client handler")
	message := fs.String("m", "", "item content (required)")
	if err := fs.Parse(args); err != nil {
		return errors.Annotate(err, "publish flags")
	}
	if *message == "" {
		return errors.NotValidf("publish empty -m")
	}
	key, err := subcmd.RequireKey(config)
	if err != nil {
		return err
	}
	item := mq.Item{Kind: *kind, Content: *message}
	if err = mqnet.Publish(ctx, config.PublishOptions(key, subcmd.Log(ctx)), item); err != nil {
		return err
	}
	subcmd.Log(ctx).Debugf("published item=%s", item.String())
	return nil
}

func ShellMain(ctx context.Context, config *mq_config.Config, args []string) error {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	kind := fs.String("k", DefaultKind, "kind for lines without `kind:` prefix")
	if err := fs.Parse(args); err != nil {
		return errors.Annotate(err, "shell flags")
	}
	log := subcmd.Log(ctx)
	key, err := subcmd.RequireKey(config)
	if err != nil {
		return err
	}
	p, err := mqnet.NewPublisher(ctx, config.PublishOptions(key, log))
	if err != nil {
		return err
	}
	defer p.Close()
	log.Infof("shell publishing to server=%s", p.Server())

	kinds := map[string]struct{}{*kind: {}}
	exec := func(line string) {
		item := ParseLine(line, *kind)
		if item.Content == "" {
			return
		}
		kinds[item.Kind] = struct{}{}
		if err := p.Publish(item); err != nil {
			log.Error(err)
			return
		}
		log.Infof("published %s", item.String())
	}
	complete := func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), ":") {
			return nil
		}
		suggests := make([]prompt.Suggest, 0, len(kinds))
		for k := range kinds {
			suggests = append(suggests, prompt.Suggest{Text: k + ": "})
		}
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
	err = cli.MainLoop(ctx, "moqu", exec, complete)
	if errors.Cause(err) == context.Canceled {
		err = nil
	}
	log.Infof("shell done stat=%s", p.Stat())
	return err
}

// ParseLine splits `kind: content`. Line without colon, or with whitespace
// before it, is all content of default kind.
func ParseLine(line, defaultKind string) mq.Item {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ':'); i > 0 {
		if k := line[:i]; !strings.ContainsAny(k, " \t") {
			return mq.Item{Kind: k, Content: strings.TrimSpace(line[i+1:])}
		}
	}
	return mq.Item{Kind: defaultKind, Content: line}
}
