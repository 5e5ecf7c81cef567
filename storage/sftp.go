package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"vodforge/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ProbeSFTP creates a marker file below the destination path on a remote
// SFTP server and removes it again.
// accessInfo should contain at least: host, user, basePath. Optionally: port
// (default 22), password or privateKey (base64 or raw PEM).
func ProbeSFTP(ctx context.Context, accessInfo map[string]string, markerName string) error {
	host := accessInfo["host"]
	port := accessInfo["port"]
	if port == "" {
		port = "22"
	}
	user := accessInfo["user"]
	password := accessInfo["password"]
	privateKey := accessInfo["privateKey"]
	basePath := accessInfo["basePath"]

	if host == "" || user == "" || basePath == "" {
		return fmt.Errorf("missing required accessInfo keys: host, user, basePath")
	}

	var auths []ssh.AuthMethod
	if privateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if password != "" {
		auths = append(auths, ssh.Password(password))
	} else {
		return fmt.Errorf("no auth method provided; set password or privateKey in accessInfo")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(host, port)

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	markerPath := path.Join(basePath, markerName)

	if err := mkdirAllSFTP(sftpClient, path.Dir(markerPath)); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", path.Dir(markerPath), err)
	}

	f, err := sftpClient.Create(markerPath)
	if err != nil {
		return fmt.Errorf("create marker file %s: %w", markerPath, err)
	}
	if _, err := f.Write([]byte("vodforge preflight")); err != nil {
		f.Close()
		return fmt.Errorf("write marker file %s: %w", markerPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close marker file %s: %w", markerPath, err)
	}

	if err := sftpClient.Remove(markerPath); err != nil {
		return fmt.Errorf("remove marker file %s: %w", markerPath, err)
	}

	logger.Debugf("SFTP probe ok for %s at '%s'", addr, markerPath)
	return nil
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	// Normalize and split path - use strings since sftp paths are posix-like
	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}

	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if os.IsNotExist(err) {
				if err := client.Mkdir(cur); err != nil {
					return fmt.Errorf("mkdir %s: %w", cur, err)
				}
			} else {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
		}
	}
	return nil
}
