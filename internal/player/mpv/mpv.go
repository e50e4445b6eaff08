// Package mpv implements player.Player on top of mpv's JSON IPC.
package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/diniamo/gopv"
	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/justchokingaround/watchengine/internal/player"
)

const (
	progressInterval = time.Second
	ipcDialTimeout   = 200 * time.Millisecond
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures the mpv backend
type Options struct {
	// LoadUserConfig lets mpv read the user's mpv.conf
	LoadUserConfig bool
	Debug          bool
	Logger         *slog.Logger
}

// Player implements player.Player using mpv with IPC
type Player struct {
	mu sync.RWMutex

	// mpv process and IPC
	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform

	// State
	state      player.State
	currentURL string
	options    player.PlayOptions

	// Callbacks
	onProgress func(player.PlaybackProgress)
	onLoaded   func(time.Duration)
	onEnd      func()
	onExit     func()
	onError    func(error)

	// Control
	cancel       context.CancelFunc
	clientClosed bool

	opts   Options
	logger *slog.Logger
}

var _ player.Player = (*Player)(nil)

// New creates an mpv player. It fails when no mpv executable is in PATH.
func New(opts Options) (*Player, error) {
	platform := DetectPlatform()
	if _, err := FindMPVExecutable(platform); err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	return newPlayer(platform, opts), nil
}

// NewFromConfig creates an mpv player from the playback configuration
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Player, error) {
	return New(Options{
		LoadUserConfig: cfg.Playback.LoadUserConfig,
		Debug:          cfg.Advanced.Debug,
		Logger:         logger,
	})
}

func newPlayer(platform Platform, opts Options) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		state:    player.StateStopped,
		platform: platform,
		opts:     opts,
		logger:   logger.With("component", "mpv"),
	}
}

// Play starts playback of url, replacing whatever is playing.
// It returns once mpv is launched; IPC failures are reported via OnError.
func (p *Player) Play(ctx context.Context, url string, options player.PlayOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != player.StateStopped {
		if err := p.stopLocked(); err != nil {
			return fmt.Errorf("failed to stop existing playback: %w", err)
		}
	}

	mpvExec := GetMPVExecutable(p.platform)
	if _, err := exec.LookPath(mpvExec); err != nil {
		return fmt.Errorf("mpv executable not found in PATH (%s): %w", mpvExec, err)
	}

	ipcConfig, err := GetIPCConfig(p.platform)
	if err != nil {
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	p.ipcConfig = ipcConfig

	args := p.buildMPVArgs(url, options)
	p.cmd = exec.Command(mpvExec, args...)

	// Detach mpv from the terminal so it cannot steal input from the TUI
	p.cmd.Stdin = nil
	p.cmd.Stdout = nil
	p.cmd.Stderr = nil
	detach(p.cmd)

	if err := p.cmd.Start(); err != nil {
		p.cleanupIPC()
		return fmt.Errorf("failed to start %s: %w", mpvExec, err)
	}

	p.currentURL = url
	p.options = options
	p.state = player.StateLoading
	p.clientClosed = false

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.connect(ctx, runCtx, ipcConfig, p.cmd)

	p.logger.Debug("mpv started", "url", url, "ipc", ipcConfig.Address)
	return nil
}

// connect waits for the IPC endpoint, connects and starts the monitors
func (p *Player) connect(ctx, runCtx context.Context, ipcConfig *IPCConfig, cmd *exec.Cmd) {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	fail := func(err error) {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			go func() { _ = cmd.Wait() }()
		}

		p.mu.Lock()
		p.cleanupIPC()
		p.state = player.StateError
		errorCallback := p.onError
		p.mu.Unlock()

		if errorCallback != nil {
			errorCallback(err)
		}
	}

	if err := p.waitForIPC(initCtx, ipcConfig); err != nil {
		fail(fmt.Errorf("timeout waiting for mpv IPC at %s: %w", ipcConfig.Address, err))
		return
	}

	connStr := GetGopvConnectionString(ipcConfig)
	client, err := gopv.Connect(connStr, func(err error) {
		p.mu.RLock()
		errorCallback := p.onError
		p.mu.RUnlock()
		if errorCallback != nil {
			errorCallback(err)
		}
	})
	if err != nil {
		fail(fmt.Errorf("failed to connect to mpv IPC at %s: %w", connStr, err))
		return
	}

	p.mu.Lock()
	if runCtx.Err() != nil {
		// stopped while connecting
		p.mu.Unlock()
		return
	}
	p.client = client
	p.state = player.StatePlaying
	p.mu.Unlock()

	go p.monitorProgress(runCtx, client)
	go p.monitorProcess(runCtx, cmd)
}

// Stop stops playback and cleans up resources
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// stopLocked must be called with p.mu held
func (p *Player) stopLocked() error {
	if p.state == player.StateStopped {
		return nil
	}
	p.state = player.StateStopped

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	// gopv closes the client itself once mpv goes away, so only ask mpv to quit
	if p.client != nil && !p.clientClosed {
		p.clientClosed = true
		client := p.client
		go func() {
			done := make(chan struct{})
			go func() {
				_, _ = client.Request("quit")
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
			}
		}()
	}
	p.client = nil

	// monitorProcess owns Wait
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil

	p.cleanupIPC()
	p.currentURL = ""
	return nil
}

// cleanupIPC removes the unix socket, if any
func (p *Player) cleanupIPC() {
	if p.ipcConfig != nil && p.ipcConfig.IsSocket {
		_ = os.Remove(p.ipcConfig.Address)
	}
	p.ipcConfig = nil
}

// GetProgress returns the current playback progress
func (p *Player) GetProgress(ctx context.Context) (*player.PlaybackProgress, error) {
	p.mu.RLock()
	client, state := p.client, p.state
	p.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("player not initialized")
	}
	if state == player.StateStopped {
		return nil, fmt.Errorf("player is stopped")
	}

	progress, err := readProgress(client)
	if err != nil {
		return nil, fmt.Errorf("mpv IPC error: %w", err)
	}
	return progress, nil
}

// readProgress queries the playback properties over IPC
func readProgress(client *gopv.Client) (*player.PlaybackProgress, error) {
	var timePos, duration float64
	var paused, eof bool
	var propertyErrors int

	if result, err := client.Request("get_property", "time-pos"); err == nil {
		if val, ok := result.(float64); ok {
			timePos = val
		}
	} else {
		propertyErrors++
		// named pipes surface a dead connection as request failures
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("windows IPC error getting time-pos: %w", err)
		}
	}

	if result, err := client.Request("get_property", "duration"); err == nil {
		if val, ok := result.(float64); ok {
			duration = val
		}
	} else {
		propertyErrors++
	}

	if result, err := client.Request("get_property", "pause"); err == nil {
		if val, ok := result.(bool); ok {
			paused = val
		}
	} else {
		propertyErrors++
	}

	if result, err := client.Request("get_property", "eof-reached"); err == nil {
		if val, ok := result.(bool); ok {
			eof = val
		}
	} else {
		propertyErrors++
	}

	if propertyErrors >= 3 {
		return nil, fmt.Errorf("IPC connection failed (failed to get %d properties)", propertyErrors)
	}

	return newProgress(timePos, duration, paused, eof), nil
}

func newProgress(timePos, duration float64, paused, eof bool) *player.PlaybackProgress {
	var percentage float64
	if duration > 0 {
		percentage = (timePos / duration) * 100
	}
	return &player.PlaybackProgress{
		CurrentTime: time.Duration(timePos * float64(time.Second)),
		Duration:    time.Duration(duration * float64(time.Second)),
		Percentage:  percentage,
		Paused:      paused,
		EOF:         eof,
	}
}

// Seek seeks to an absolute position
func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("player not initialized")
	}
	if _, err := client.Request("set_property", "time-pos", position.Seconds()); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// OnProgressUpdate sets the progress update callback
func (p *Player) OnProgressUpdate(callback func(progress player.PlaybackProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress = callback
}

// OnFileLoaded sets the callback fired once the stream duration is known
func (p *Player) OnFileLoaded(callback func(duration time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoaded = callback
}

// OnPlaybackEnd sets the playback end callback
func (p *Player) OnPlaybackEnd(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnd = callback
}

// OnExit sets the callback fired when mpv is closed by the user
func (p *Player) OnExit(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = callback
}

// OnError sets the error callback
func (p *Player) OnError(callback func(err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = callback
}

// IsPlaying returns true if the player is currently playing
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == player.StatePlaying
}

// IsPaused returns true if the player is currently paused
func (p *Player) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == player.StatePaused
}

// monitorProgress polls mpv and fires the progress, file-loaded and end callbacks
func (p *Player) monitorProgress(ctx context.Context, client *gopv.Client) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	tracker := &loadTracker{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress, err := readProgress(client)
			if err != nil {
				p.logger.Debug("progress poll failed", "error", err)
				continue
			}
			if !p.dispatch(ctx, tracker, *progress) {
				return
			}
		}
	}
}

// dispatch delivers one progress sample; it returns false once the stream ended
func (p *Player) dispatch(ctx context.Context, tracker *loadTracker, progress player.PlaybackProgress) bool {
	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return false
	}
	if progress.Paused {
		p.state = player.StatePaused
	} else {
		p.state = player.StatePlaying
	}
	onLoaded, onProgress, onEnd := p.onLoaded, p.onProgress, p.onEnd
	p.mu.Unlock()

	if tracker.observe(progress.Duration) && onLoaded != nil {
		onLoaded(progress.Duration)
	}
	if onProgress != nil {
		onProgress(progress)
	}
	if progress.EOF {
		if onEnd != nil {
			onEnd()
		}
		return false
	}
	return true
}

// loadTracker reports the first sample with a known duration
type loadTracker struct {
	loaded bool
}

func (l *loadTracker) observe(duration time.Duration) bool {
	if l.loaded || duration <= 0 {
		return false
	}
	l.loaded = true
	return true
}

// monitorProcess waits for mpv to exit and reports exits nobody asked for
func (p *Player) monitorProcess(ctx context.Context, cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	stoppedByUs := ctx.Err() != nil
	errorCallback, exitCallback := p.onError, p.onExit
	if !stoppedByUs {
		_ = p.stopLocked()
	}
	p.mu.Unlock()

	if stoppedByUs {
		return
	}
	if err != nil && errorCallback != nil {
		errorCallback(fmt.Errorf("mpv process exited unexpectedly: %w", err))
	}
	if exitCallback != nil {
		exitCallback()
	}
}

// buildMPVArgs builds the command-line arguments for mpv
func (p *Player) buildMPVArgs(url string, opts player.PlayOptions) []string {
	args := []string{
		GetMPVIPCArgument(p.ipcConfig),
		"--idle=yes", // keep mpv open at end of file so eof-reached can be polled
		"--no-ytdl",
	}

	if !p.opts.LoadUserConfig {
		args = append(args, "--no-config")
	}
	if !p.opts.Debug {
		args = append(args, "--msg-level=all=warn")
	}

	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}

	if opts.SubtitleURL != "" {
		args = append(args, fmt.Sprintf("--sub-file=%s", opts.SubtitleURL))
	}
	if opts.SubtitleLang != "" {
		args = append(args, fmt.Sprintf("--slang=%s", opts.SubtitleLang))
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	args = append(args, fmt.Sprintf("--user-agent=%s", userAgent))

	if opts.Referer != "" {
		args = append(args, fmt.Sprintf("--referrer=%s", opts.Referer))
	}

	var headers []string
	for key, value := range opts.Headers {
		if key != "User-Agent" && key != "Referer" {
			headers = append(headers, fmt.Sprintf("%s: %s", key, value))
		}
	}
	if len(headers) > 0 {
		args = append(args, fmt.Sprintf("--http-header-fields=%s", strings.Join(headers, ",")))
	}

	if opts.Title != "" {
		args = append(args, fmt.Sprintf("--force-media-title=%s", opts.Title))
	}

	args = append(args, opts.MPVArgs...)

	// URL must be last
	return append(args, url)
}

// waitForIPC waits for the IPC endpoint to accept connections
func (p *Player) waitForIPC(ctx context.Context, ipcConfig *IPCConfig) error {
	timeoutDuration := 5 * time.Second
	if ipcConfig.Type == IPCTCP || ipcConfig.Type == IPCNamedPipe {
		timeoutDuration = 10 * time.Second
	}

	timeout := time.After(timeoutDuration)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for IPC at %s after %v", ipcConfig.Address, timeoutDuration)
		case <-ticker.C:
			if ipcReady(ipcConfig) {
				// the endpoint exists before mpv answers on it
				time.Sleep(200 * time.Millisecond)
				return nil
			}
		}
	}
}

func ipcReady(ipcConfig *IPCConfig) bool {
	switch {
	case ipcConfig.IsSocket:
		_, err := os.Stat(ipcConfig.Address)
		return err == nil
	case ipcConfig.Type == IPCTCP:
		conn, err := net.DialTimeout("tcp", ipcConfig.Address, ipcDialTimeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	case ipcConfig.Type == IPCNamedPipe:
		return dialNamedPipe(ipcConfig.Address, ipcDialTimeout)
	default:
		return false
	}
}
