package config

import (
	"fmt"
	"net"
	"strconv"
)

// ApplicationConfiguration config specific to the manager.
type ApplicationConfiguration struct {
	Logger `yaml:",inline"`

	// Address is the address the TCP listener binds to.
	Address string `yaml:"Address"`
	// Port is the port the TCP listener binds to.
	Port uint16 `yaml:"Port"`

	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`

	Index IndexConfiguration `yaml:"Index"`
}

// IndexConfiguration holds the filesystem index settings.
type IndexConfiguration struct {
	// CachePath is the path to the on-disk index cache. Empty disables
	// persistence.
	CachePath string `yaml:"CachePath"`
	// Roots is the list of directories crawled into the index.
	Roots []string `yaml:"Roots"`
	// CrawlInterval is the number of seconds between crawls.
	CrawlInterval int64 `yaml:"CrawlInterval"`
}

// ListenAddress returns the address:port string the listener binds to.
func (a *ApplicationConfiguration) ListenAddress() string {
	return net.JoinHostPort(a.Address, strconv.FormatUint(uint64(a.Port), 10))
}

// Validate returns an error if ApplicationConfiguration is not valid.
func (a *ApplicationConfiguration) Validate() error {
	if err := a.Logger.Validate(); err != nil {
		return err
	}
	if a.Address == "" {
		return fmt.Errorf("invalid Address: empty")
	}
	if a.Index.CrawlInterval < 0 {
		return fmt.Errorf("invalid Index.CrawlInterval: %d", a.Index.CrawlInterval)
	}
	return nil
}
