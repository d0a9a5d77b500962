/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/carbocation/interpose"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"plugchain/plugin"
)

var ErrStopping = errors.New("stopping")

type Server struct {
	settings  *Settings
	host      *plugin.Host
	r         *httprouter.Router
	middle    *interpose.Middleware
	logWriter io.WriteCloser

	t        tomb.Tomb
	listener net.Listener
}

func NewServer(settings *Settings) (*Server, error) {
	if settings == nil {
		defaults := DefaultSettings()
		settings = &defaults
	}
	s := &Server{
		settings: settings,
		r:        httprouter.New(),
	}
	if err := s.configureLogging(); err != nil {
		return nil, err
	}
	registerMetrics()

	var err error
	s.host, err = NewPluginHost(context.Background(), settings)
	if err != nil {
		s.closeLog()
		return nil, err
	}

	s.middle = interpose.New()
	s.middle.Use(s.observe)
	s.middle.UseHandler(s.r)

	mountViews(s.r, s.host, settings.HTTP.ViewPrefix)
	if settings.Metrics != nil && settings.Metrics.Enabled {
		s.r.Handler("GET", settings.Metrics.Path, promhttp.Handler())
	}
	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.middle
}

// Host returns the booted plugin host.
func (s *Server) Host() *plugin.Host {
	return s.host
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)
		recordHTTPRequestDuration(r.Method, sw.code(), duration)
		if s.settings.HTTP.LogRequestDetails {
			log.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.code(),
				"duration": duration,
				"from":     r.RemoteAddr,
			}).Info("request")
		}
	})
}

func (s *Server) configureLogging() error {
	if level, err := log.ParseLevel(strings.ToLower(s.settings.LogLevel)); err != nil {
		log.Warningf("invalid LogLevel=%q: %v", s.settings.LogLevel, err)
	} else {
		log.SetLevel(level)
	}
	return s.openLog()
}

func (s *Server) openLog() error {
	if s.settings.LogFile == "" {
		return nil
	}
	f, err := os.OpenFile(s.settings.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open log file %q", s.settings.LogFile)
	}
	log.SetOutput(f)
	s.logWriter = f
	return nil
}

func (s *Server) closeLog() {
	if s.logWriter != nil {
		log.SetOutput(os.Stderr)
		s.logWriter.Close()
		s.logWriter = nil
	}
}

// LogRotate reopens the log file, for use after it was moved aside.
func (s *Server) LogRotate() {
	w := s.logWriter
	s.logWriter = nil
	if err := s.openLog(); err != nil {
		log.Errorf("failed to reopen log: %v", err)
		s.logWriter = w
		return
	}
	if w != nil {
		w.Close()
	}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.settings.HTTP.Bind)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %q", s.settings.HTTP.Bind)
	}
	log.WithFields(log.Fields{
		"addr":    s.listener.Addr().String(),
		"modules": s.host.Modules(),
	}).Infof("%s %s listening", s.settings.Software, s.settings.Version)

	srv := &http.Server{Handler: s.middle}
	s.t.Go(func() error {
		err := srv.Serve(s.listener)
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.WithStack(err)
	})
	s.t.Go(func() error {
		<-s.t.Dying()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warningf("failed to shut down cleanly: %v", err)
		}
		return nil
	})
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Wait() error {
	return s.t.Wait()
}

// Stop shuts the listener down, then closes module resources.
func (s *Server) Stop() {
	defer s.closeLog()
	defer func() {
		if err := s.host.Close(); err != nil {
			log.Errorf("%+v", err)
		}
	}()
	if s.listener == nil {
		return
	}
	s.t.Kill(ErrStopping)
	s.t.Wait()
}
