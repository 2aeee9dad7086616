package executor

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/mensylisir/xmbuild/common"
)

// SSHConfig describes how to reach a remote build host.
type SSHConfig struct {
	Username   string
	Password   string
	Address    string
	Port       int
	PrivateKey string
	KeyFile    string
	Timeout    time.Duration
}

const defaultSSHTimeout = 30 * time.Second

// remoteExecutor runs commands over SSH sessions and stats files over SFTP.
type remoteExecutor struct {
	mu         sync.Mutex
	config     SSHConfig
	sshclient  *ssh.Client
	sftpclient *sftp.Client
}

// NewRemoteExecutor dials the host described by cfg and returns an Executor bound to it.
func NewRemoteExecutor(cfg SSHConfig) (Executor, error) {
	cfg, err := validateSSHConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate ssh connection parameters")
	}

	authMethods := make([]ssh.AuthMethod, 0, 2)
	if len(cfg.Password) > 0 {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}
	if len(cfg.PrivateKey) > 0 {
		signer, parseErr := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if parseErr != nil {
			return nil, errors.Wrap(parseErr, "the given SSH key could not be parsed")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Timeout:         cfg.Timeout,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	endpoint := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", endpoint, clientConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "could not establish connection to %s", endpoint)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to create SFTP client")
	}

	return &remoteExecutor{config: cfg, sshclient: client, sftpclient: sftpClient}, nil
}

func validateSSHConfig(cfg SSHConfig) (SSHConfig, error) {
	if len(cfg.Username) == 0 {
		return cfg, errors.New("no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errors.New("no address specified for SSH connection")
	}
	if len(cfg.Password) == 0 && len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) == 0 {
		return cfg, errors.New("must specify at least one of password, private key or keyfile")
	}
	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) > 0 {
		content, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read keyfile %q", cfg.KeyFile)
		}
		cfg.PrivateKey = string(content)
	}
	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSSHTimeout
	}
	return cfg, nil
}

func (r *remoteExecutor) clients() (*ssh.Client, *sftp.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sshclient, r.sftpclient
}

func (r *remoteExecutor) Execute(ctx context.Context, command string) (string, string, int, error) {
	client, _ := r.clients()
	if client == nil {
		return "", "", -1, errors.New("ssh connection is closed or not initialized")
	}
	if strings.TrimSpace(command) == "" {
		return "", "", -1, errors.New("empty command")
	}

	sess, err := client.NewSession()
	if err != nil {
		return "", "", -1, errors.Wrap(err, "failed to create ssh session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(strings.TrimSpace(command))
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGINT)
		_ = sess.Close()
		<-done
		return stdout.String(), stderr.String(), -1, errors.Wrap(ctx.Err(), "command execution cancelled")
	case err = <-done:
	}

	if err == nil {
		return stdout.String(), stderr.String(), 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitStatus(), nil
	}
	return stdout.String(), stderr.String(), -1, errors.Wrapf(err, "failed to run command: %s", command)
}

func (r *remoteExecutor) SudoExecute(ctx context.Context, command string) (string, string, int, error) {
	return r.Execute(ctx, SudoPrefix(command))
}

func (r *remoteExecutor) StatRemote(ctx context.Context, path string) (os.FileInfo, error) {
	_, sftpClient := r.clients()
	if sftpClient == nil {
		return nil, errors.New("sftp client is not initialized or connection is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := sftpClient.Stat(path)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(strings.ToLower(err.Error()), "no such file") {
			return nil, os.ErrNotExist
		}
		return nil, errors.Wrapf(err, "sftp: failed to stat remote path %s", path)
	}
	return info, nil
}

func (r *remoteExecutor) RemoteFileExists(ctx context.Context, path string) (bool, error) {
	info, err := r.StatRemote(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (r *remoteExecutor) RemoteDirExists(ctx context.Context, path string) (bool, error) {
	info, err := r.StatRemote(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (r *remoteExecutor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msgs []string
	if r.sftpclient != nil {
		if err := r.sftpclient.Close(); err != nil {
			msgs = append(msgs, "sftp close error: "+err.Error())
		}
		r.sftpclient = nil
	}
	if r.sshclient != nil {
		if err := r.sshclient.Close(); err != nil {
			msgs = append(msgs, "ssh close error: "+err.Error())
		}
		r.sshclient = nil
	}
	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
