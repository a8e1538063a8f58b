package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/CodedInternet/gorover/comms"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	CONNECTION_TIMEOUT = time.Second
	STATE_BUFFER       = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// only one dashboard drives at a time
var controlLock sync.Mutex

// ControlHandler feeds dashboard commands into the rover. The dashboard must
// send something at least every CONNECTION_TIMEOUT, and every input is let go
// when it stops so the watchdog brings the rover to a halt.
func ControlHandler(w http.ResponseWriter, r *http.Request) {
	if !controlLock.TryLock() {
		log.WithField("remote", r.RemoteAddr).Warn("refused second control connection")
		http.Error(w, "another dashboard is in control", http.StatusConflict)
		return
	}
	defer controlLock.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()
	defer ENV.Conductor.Reset()

	logger := log.WithField("remote", r.RemoteAddr)
	logger.Info("dashboard connected")
	for {
		conn.SetReadDeadline(time.Now().Add(CONNECTION_TIMEOUT))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Info("dashboard disconnected")
			return
		}

		cmd, err := comms.DecodeCmd(msg)
		if err == nil {
			err = ENV.Conductor.ProcessCommand(cmd)
		}
		if err != nil {
			logger.WithError(err).Warn("bad dashboard command")
			err = conn.WriteJSON(map[string]string{"error": err.Error()})
		} else {
			err = writePayload(conn, comms.NewStatePayload(ENV.Rover.State(), currentPose()))
		}
		if err != nil {
			logger.WithError(err).Warn("write failed")
			return
		}
	}
}

// StateStreamHandler pushes every state change to the client until it goes
// away.
func StateStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	states, cancel := ENV.Rover.Subscribe(STATE_BUFFER)
	defer cancel()

	// the client never sends anything, reading only notices it closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(CONNECTION_TIMEOUT))
			if err := writePayload(conn, comms.NewStatePayload(state, currentPose())); err != nil {
				log.WithError(err).Debug("state stream closed")
				return
			}
		}
	}
}

func writePayload(conn *websocket.Conn, p comms.StatePayload) error {
	msg, err := p.Marshal()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}
