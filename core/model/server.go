// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"net"
	"strings"
)

// Well known server options.
const (
	OptionPrimary   = "primary"
	OptionNoRelease = "no_release"
)

// Server is a single target host declared in one or more roles.
// Host may be "host", "host:port" or "user@host[:port]".
type Server struct {
	Host    string         `json:"host" yaml:"host"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// NewServer returns a Server with a copy of opts.
func NewServer(host string, opts map[string]any) Server {
	s := Server{Host: strings.TrimSpace(host)}
	if len(opts) > 0 {
		s.Options = make(map[string]any, len(opts))
		for k, v := range opts {
			s.Options[k] = v
		}
	}
	return s
}

// Primary reports whether the server carries primary: true.
func (s Server) Primary() bool { return s.boolOption(OptionPrimary) }

// NoRelease reports whether the server carries no_release: true.
func (s Server) NoRelease() bool { return s.boolOption(OptionNoRelease) }

func (s Server) boolOption(name string) bool {
	v, ok := s.Options[name]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Matches reports whether every key in filter is present on the server with
// an equal value. An empty filter never matches.
func (s Server) Matches(filter map[string]any) bool {
	if len(filter) == 0 {
		return false
	}
	for k, want := range filter {
		if !s.matchOption(k, want) {
			return false
		}
	}
	return true
}

// MatchesAny reports whether at least one key in filter matches. Task
// exclusions use it, so any listed option is enough to drop a server.
func (s Server) MatchesAny(filter map[string]any) bool {
	for k, want := range filter {
		if s.matchOption(k, want) {
			return true
		}
	}
	return false
}

func (s Server) matchOption(k string, want any) bool {
	got, ok := s.Options[k]
	if !ok {
		// An absent boolean option is false.
		b, isBool := want.(bool)
		return isBool && !b
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// Merge returns a copy of s with the options of other layered on top.
func (s Server) Merge(other Server) Server {
	out := NewServer(s.Host, s.Options)
	if len(other.Options) > 0 && out.Options == nil {
		out.Options = make(map[string]any, len(other.Options))
	}
	for k, v := range other.Options {
		out.Options[k] = v
	}
	return out
}

// Address splits Host into the login user (may be empty) and a host:port
// address, applying defaultPort when Host has none.
func (s Server) Address(defaultPort int) (user, addr string) {
	host := s.Host
	if i := strings.LastIndex(host, "@"); i >= 0 {
		user, host = host[:i], host[i+1:]
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return user, host
	}
	if defaultPort <= 0 {
		defaultPort = 22
	}
	return user, net.JoinHostPort(strings.Trim(host, "[]"), fmt.Sprint(defaultPort))
}

// Hostname returns Host without any user or port component.
func (s Server) Hostname() string {
	_, addr := s.Address(22)
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return h
}

func (s Server) String() string { return s.Host }
