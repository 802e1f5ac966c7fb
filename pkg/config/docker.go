package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running in Docker,
// so a containerized server can reach Postgres or Ollama on the host machine.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return dockerHost(host)
}

// ResolveURLForDocker applies ResolveHostForDocker to the host part of rawURL.
// Unparseable URLs are returned unchanged.
func ResolveURLForDocker(rawURL string) string {
	if !IsRunningInDocker() {
		return rawURL
	}
	return rewriteURLHost(rawURL, dockerHost)
}

func dockerHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

func rewriteURLHost(rawURL string, rewrite func(string) string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	host, port := u.Hostname(), u.Port()
	host = rewrite(host)
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}
