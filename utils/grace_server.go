package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	serverReadTimeout  = 60 * time.Second
	serverWriteTimeout = 60 * time.Second

	// A restarted child finds the inherited listener at this fd and knows it
	// was handed one by the presence of the env marker.
	inheritedEnvKey  = "AMA_GRACEFUL"
	inheritedEnvPair = inheritedEnvKey + "=1"
	inheritedFd      = 3

	shutdownGrace = 30 * time.Second
)

// gracefulServer serves HTTP and supports zero-downtime handover: SIGTERM
// drains and exits, SIGUSR2 forks a child on the same listener before the
// parent drains.
type gracefulServer struct {
	http  *http.Server
	ln    net.Listener
	child bool

	signals chan os.Signal
	drained chan struct{}
}

func newGracefulServer(addr string, handler http.Handler) *gracefulServer {
	return &gracefulServer{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		},
		child:   os.Getenv(inheritedEnvKey) != "",
		signals: make(chan os.Signal, 1),
		drained: make(chan struct{}),
	}
}

func (s *gracefulServer) listen() (net.Listener, error) {
	if s.child {
		ln, err := net.FileListener(os.NewFile(inheritedFd, ""))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return ln, nil
}

// run serves on serveLn. rawLn is the plain TCP listener whose fd gets handed
// to a restarted child; for plain HTTP the two are the same listener.
func (s *gracefulServer) run(serveLn, rawLn net.Listener) error {
	s.ln = rawLn
	go s.watchSignals()
	err := s.http.Serve(serveLn)
	// Serve returns the moment the listener closes; wait for in-flight
	// requests to finish draining.
	<-s.drained
	return err
}

func (s *gracefulServer) watchSignals() {
	signal.Notify(s.signals, syscall.SIGTERM, syscall.SIGUSR2)
	for sig := range s.signals {
		switch sig {
		case syscall.SIGTERM:
			Sugar.Info("SIGTERM received, draining HTTP server")
			s.drain()
		case syscall.SIGUSR2:
			Sugar.Info("SIGUSR2 received, handing listener to a new process")
			pid, err := s.forkChild()
			if err != nil {
				Sugar.Errorf("graceful restart failed, continuing to serve: %v", err)
				continue
			}
			Sugar.Infof("child process %d serving, draining parent", pid)
			s.drain()
		}
	}
}

func (s *gracefulServer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown: %v", err)
	} else {
		Sugar.Info("HTTP server drained")
	}
	close(s.drained)
}

func (s *gracefulServer) forkChild() (int, error) {
	tcpLn, ok := s.ln.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be inherited", s.ln)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener fd: %w", err)
	}

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritedEnvPair {
			env = append(env, e)
		}
	}
	env = append(env, inheritedEnvPair)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork: %w", err)
	}
	return pid, nil
}

// GraceServer serves HTTP on addr with graceful shutdown and zero-downtime
// restart support.
func GraceServer(addr string, handler http.Handler) error {
	srv := newGracefulServer(addr, handler)
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	return srv.run(ln, ln)
}

// GraceServerTLS is GraceServer over TLS.
func GraceServerTLS(addr, certFile, keyFile string, handler http.Handler) error {
	srv := newGracefulServer(addr, handler)
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	tlsLn := tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"http/1.1"},
	})
	return srv.run(tlsLn, ln)
}
