// Package mq_config reads moqu HCL config with includes.
package mq_config

import (
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/moqu/helpers"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	"github.com/temoto/moqu/mq/handler"
	mqnet "github.com/temoto/moqu/mq/net"
	"github.com/temoto/moqu/mq/seal"
)

const DefaultName = "moqu.hcl"

type Config struct {
	includeSeen map[string]struct{}
	XXX_Include []Source `hcl:"include"`

	Host          string `hcl:"host"`
	Port          int    `hcl:"port"`
	IPv6          bool   `hcl:"ipv6"`
	Key           string `hcl:"key"`
	LogDebug      bool   `hcl:"log_debug"`
	MetricsListen string `hcl:"metrics_listen"`

	Server ServerConfig `hcl:"server"`
	Client ClientConfig `hcl:"client"`
}

type ServerConfig struct {
	HeartbeatIntervalMs int `hcl:"heartbeat_interval_ms"`
	MailboxLimit        int `hcl:"mailbox_limit"`
}

type ClientConfig struct {
	LivenessIntervalMs   int    `hcl:"liveness_interval_ms"`
	StaleSec             int    `hcl:"stale_sec"`
	HandlerDir           string `hcl:"handler_dir"`
	TolerateDecodeErrors bool   `hcl:"tolerate_decode_errors"`
	MailboxLimit         int    `hcl:"mailbox_limit"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// Defaults replaces zero values.
func (c *Config) Defaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = mq.DefaultPort
	}
	if c.Client.HandlerDir == "" {
		c.Client.HandlerDir = "."
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0)
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, errors.NotValidf("port=%d", c.Port))
	}
	check := func(name string, x int) {
		if x < 0 {
			errs = append(errs, errors.NotValidf("%s=%d", name, x))
		}
	}
	check("server.heartbeat_interval_ms", c.Server.HeartbeatIntervalMs)
	check("server.mailbox_limit", c.Server.MailboxLimit)
	check("client.liveness_interval_ms", c.Client.LivenessIntervalMs)
	check("client.stale_sec", c.Client.StaleSec)
	check("client.mailbox_limit", c.Client.MailboxLimit)
	if c.Key != "" {
		if _, err := seal.KeyFromHex(c.Key); err != nil {
			errs = append(errs, errors.Annotate(err, "config key"))
		}
	}
	return helpers.FoldErrors(errs)
}

// SealKey returns key from env (getenv(mq.KeyEnv)) or config, env wins.
// ok=false when neither is set.
func (c *Config) SealKey(getenv func(string) string) (key seal.Key, ok bool, err error) {
	s, from := getenv(mq.KeyEnv), mq.KeyEnv
	if s == "" {
		s, from = c.Key, "config key"
	}
	if s == "" {
		return seal.Key{}, false, nil
	}
	key, err = seal.KeyFromHex(s)
	return key, err == nil, errors.Annotatef(err, "%s", from)
}

func (c *Config) HeartbeatInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Server.HeartbeatIntervalMs, mqnet.DefaultHeartbeatInterval)
}
func (c *Config) LivenessInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Client.LivenessIntervalMs, mqnet.DefaultLivenessInterval)
}
func (c *Config) StaleAfter() time.Duration {
	return helpers.IntSecondDefault(c.Client.StaleSec, mqnet.DefaultStaleAfter)
}

func (c *Config) ServerOptions(key seal.Key, log *log2.Log) mqnet.ServerOptions {
	return mqnet.ServerOptions{
		HeartbeatInterval: c.HeartbeatInterval(),
		IPv6:              c.IPv6,
		Key:               key,
		Log:               log,
		Mailbox:           mqnet.MailboxOptions{Limit: c.Server.MailboxLimit},
		Port:              uint16(c.Port),
	}
}

func (c *Config) ClientOptions(key seal.Key, log *log2.Log) mqnet.ClientOptions {
	return mqnet.ClientOptions{
		Handler:              &handler.Exec{Dir: c.Client.HandlerDir, Log: log},
		Host:                 c.Host,
		IPv6:                 c.IPv6,
		Key:                  key,
		LivenessInterval:     c.LivenessInterval(),
		Log:                  log,
		Mailbox:              mqnet.MailboxOptions{Limit: c.Client.MailboxLimit},
		Port:                 uint16(c.Port),
		StaleAfter:           c.StaleAfter(),
		TolerateDecodeErrors: c.Client.TolerateDecodeErrors,
	}
}

func (c *Config) PublishOptions(key seal.Key, log *log2.Log) mqnet.PublishOptions {
	return mqnet.PublishOptions{
		Host: c.Host,
		IPv6: c.IPv6,
		Key:  key,
		Log:  log,
		Port: uint16(c.Port),
	}
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		// content is not printed, it may contain key
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// Read merges sources in order, later values overwrite earlier.
// For OsFullReader, relative includes resolve against directory of first source.
func Read(log *log2.Log, fs FullReader, sources ...Source) (*Config, error) {
	if len(sources) == 0 {
		return nil, errors.Errorf("code error config Read() without sources")
	}
	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(sources[0].Name)
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		sources[0].Name = name
	}
	c := &Config{includeSeen: make(map[string]struct{})}
	errs := make([]error, 0, 8)
	for _, source := range sources {
		c.read(log, fs, source, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	sources := make([]Source, len(names))
	for i, name := range names {
		sources[i] = Source{Name: name}
	}
	return Read(log, fs, sources...)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
