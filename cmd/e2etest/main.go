// E2E test: connects two chat clients to a live server, enters a room,
// exchanges a CHAT and a READ acknowledgement.
// Usage: go run ./cmd/e2etest -server ws://localhost:8080/ws -secret dev-secret-change-me -room 1
//
// The room and both memberships must already exist in the server's
// database; user ids 1 and 2 are assumed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var (
	serverURL = flag.String("server", "ws://localhost:8080/ws", "server WebSocket URL")
	secret    = flag.String("secret", "dev-secret-change-me", "JWT signing secret")
	roomID    = flag.Int64("room", 1, "room id")
)

type inbound struct {
	RoomID  int64  `json:"roomId"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type outbound struct {
	RoomID            int64  `json:"roomId"`
	Type              string `json:"type"`
	SenderID          int64  `json:"senderId"`
	Content           string `json:"content"`
	Timestamp         string `json:"timestamp"`
	LastReadMessageID int64  `json:"lastReadMessageId"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	alice := connect(1)
	defer alice.Close()
	bob := connect(2)
	defer bob.Close()

	send(alice, inbound{RoomID: *roomID, Type: "ENTER"})
	send(bob, inbound{RoomID: *roomID, Type: "ENTER"})
	time.Sleep(200 * time.Millisecond)

	log.Println(">> alice sends CHAT")
	send(alice, inbound{RoomID: *roomID, Type: "CHAT", Content: "hello from e2e"})

	msg := receive(bob)
	if msg.Type != "CHAT" || msg.SenderID != 1 || msg.Content != "hello from e2e" {
		log.Fatalf("FAIL: bob got unexpected frame: %+v", msg)
	}
	log.Printf("<< bob received CHAT senderId=%d content=%q", msg.SenderID, msg.Content)

	log.Println(">> bob sends READ")
	send(bob, inbound{RoomID: *roomID, Type: "READ"})

	ack := receive(alice)
	if ack.Type != "READ" || ack.SenderID != 2 {
		log.Fatalf("FAIL: alice got unexpected frame: %+v", ack)
	}
	log.Printf("<< alice received READ ack lastReadMessageId=%d", ack.LastReadMessageID)

	send(alice, inbound{RoomID: *roomID, Type: "LEAVE"})
	send(bob, inbound{RoomID: *roomID, Type: "LEAVE"})

	fmt.Println("PASS")
	os.Exit(0)
}

func connect(userID int64) *websocket.Conn {
	token := signToken(userID)
	u, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatalf("bad server URL: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial (user %d): %v", userID, err)
	}
	log.Printf(">> connected user %d", userID)
	return conn
}

func signToken(userID int64) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"sub":    strconv.FormatInt(userID, 10),
		"iat":    now.Unix(),
		"exp":    now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	return token
}

func send(conn *websocket.Conn, msg inbound) {
	data, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Fatalf("write: %v", err)
	}
}

func receive(conn *websocket.Conn) outbound {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	var msg outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Fatalf("decode: %v", err)
	}
	return msg
}
