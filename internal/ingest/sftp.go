package ingest

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPFetcher downloads sftp://[user@]host[:port]/path files.
type SFTPFetcher struct {
	user     string
	password string
	keyPath  string
}

func NewSFTPFetcher(user, password, keyPath string) (*SFTPFetcher, error) {
	if password == "" && keyPath == "" {
		return nil, fmt.Errorf("sftp source requires SFTP_PASSWORD or SFTP_KEY_PATH")
	}
	return &SFTPFetcher{user: user, password: password, keyPath: keyPath}, nil
}

func (s *SFTPFetcher) Name() string      { return "sftp" }
func (s *SFTPFetcher) Schemes() []string { return []string{"sftp"} }

func (s *SFTPFetcher) Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error {
	user := s.user
	if src.User != nil && src.User.Username() != "" {
		user = src.User.Username()
	}
	if user == "" || src.Hostname() == "" || src.Path == "" {
		return fmt.Errorf("%w: sftp URL must be sftp://user@host/path", ErrIngestionFailed)
	}
	port := src.Port()
	if port == "" {
		port = "22"
	}

	client, err := s.newClient(user, net.JoinHostPort(src.Hostname(), port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	defer client.Close()

	f, err := client.Open(src.Path)
	if err != nil {
		return fmt.Errorf("%w: sftp open %s: %v", ErrIngestionFailed, src.Path, err)
	}
	defer f.Close()

	var total int64
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	_, err = copyToFile(ctx, dst, f, total, sink)
	return err
}

func (s *SFTPFetcher) newClient(user, addr string) (*sftp.Client, error) {
	auths := []ssh.AuthMethod{}
	if s.keyPath != "" {
		key, err := os.ReadFile(s.keyPath)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if s.password != "" {
		auths = append(auths, ssh.Password(s.password))
	}
	cfg := ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	conn, err := ssh.Dial("tcp", addr, &cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial: %w", err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sftp session: %w", err)
	}
	return client, nil
}
