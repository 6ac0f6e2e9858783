package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scrimm/scrimm/pkg/video"
	"github.com/tidwall/gjson"
)

const (
	defaultCommand      = "mpv"
	defaultPollInterval = time.Second
	ipcTimeout          = time.Second
)

// MPV launches mpv and follows its playback position over the JSON IPC
// socket.
type MPV struct {
	Command      string
	Args         []string
	PollInterval time.Duration
}

func (m *MPV) Launch(_ context.Context, v video.FoundVideo) (Process, error) {
	bin := m.Command
	if bin == "" {
		bin = defaultCommand
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPlayer, bin)
	}

	sock := filepath.Join(os.TempDir(), "scrimm-mpv-"+uuid.NewString()[:8]+".sock")
	args := append([]string{}, m.Args...)
	args = append(args,
		"--force-window=immediate",
		"--input-ipc-server="+sock,
		"--force-media-title="+v.PageTitle,
	)
	if v.LastPlayedTime > 0 {
		args = append(args, fmt.Sprintf("--start=%.3f", v.LastPlayedTime))
	}
	args = append(args, "--", v.URLString())

	// The player outlives the request that started it, so no CommandContext.
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	interval := m.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &mpvProcess{
		cmd:      cmd,
		ipc:      &ipcClient{socket: sock},
		position: v.LastPlayedTime,
		title:    v.PageTitle,
		done:     make(chan struct{}),
	}
	go p.wait()
	go p.poll(interval)
	return p, nil
}

type mpvProcess struct {
	cmd   *exec.Cmd
	ipc   *ipcClient
	title string
	done  chan struct{}
	err   error

	mu       sync.Mutex
	position float64
}

func (p *mpvProcess) wait() {
	p.err = p.cmd.Wait()
	close(p.done)
	os.Remove(p.ipc.socket)
}

func (p *mpvProcess) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if pos, ok := p.ipc.timePos(); ok {
				p.mu.Lock()
				p.position = pos
				p.mu.Unlock()
			}
		}
	}
}

func (p *mpvProcess) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *mpvProcess) Focus() error {
	if _, err := p.ipc.command("set_property", "pause", false); err != nil {
		return err
	}
	_, err := p.ipc.command("show-text", p.title, 2000)
	return err
}

func (p *mpvProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *mpvProcess) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if _, err := p.ipc.command("quit"); err == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// ipcClient speaks mpv's line-delimited JSON protocol.
type ipcClient struct {
	socket string
	nextID int64
	mu     sync.Mutex
}

func (c *ipcClient) timePos() (float64, bool) {
	res, err := c.command("get_property", "time-pos")
	if err != nil || res.Get("data").Type != gjson.Number {
		return 0, false
	}
	return res.Get("data").Float(), true
}

// command sends one command and returns mpv's reply to it.
func (c *ipcClient) command(args ...interface{}) (gjson.Result, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	payload, err := json.Marshal(map[string]interface{}{"command": args, "request_id": id})
	if err != nil {
		return gjson.Result{}, err
	}

	conn, err := net.DialTimeout("unix", c.socket, ipcTimeout)
	if err != nil {
		return gjson.Result{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ipcTimeout))

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return gjson.Result{}, err
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		// event lines share the socket, skip anything that is not our reply
		if gjson.Get(line, "request_id").Int() != id {
			continue
		}
		res := gjson.Parse(line)
		if e := res.Get("error").String(); e != "success" {
			return res, fmt.Errorf("mpv: %s", e)
		}
		return res, nil
	}
	if err := sc.Err(); err != nil {
		return gjson.Result{}, err
	}
	return gjson.Result{}, fmt.Errorf("mpv: connection closed without reply")
}
