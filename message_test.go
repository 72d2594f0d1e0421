package main

import (
	"strings"
	"testing"
)

func TestDecodeInbound_Valid(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"roomId":7,"type":"CHAT","content":"hi"}`))
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	if in.RoomID != 7 || in.Type != TypeChat || in.Content != "hi" {
		t.Errorf("got %+v", in)
	}
}

func TestDecodeInbound_ProtocolErrors(t *testing.T) {
	longContent := strings.Repeat("a", maxContentLen+1)

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing roomId", `{"type":"CHAT","content":"hi"}`},
		{"missing type", `{"roomId":1}`},
		{"unknown type", `{"roomId":1,"type":"SHOUT"}`},
		{"chat without content", `{"roomId":1,"type":"CHAT"}`},
		{"chat blank content", `{"roomId":1,"type":"CHAT","content":"   "}`},
		{"chat content too long", `{"roomId":1,"type":"CHAT","content":"` + longContent + `"}`},
		{"enter with content", `{"roomId":1,"type":"ENTER","content":"x"}`},
		{"read with content", `{"roomId":1,"type":"READ","content":"x"}`},
		{"heartbeat with content", `{"roomId":1,"type":"HEARTBEAT","content":"x"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tc.raw)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestDecodeInbound_NonChatTypes(t *testing.T) {
	for _, typ := range []MessageType{TypeEnter, TypeLeave, TypeRead, TypeHeartbeat} {
		in, err := DecodeInbound([]byte(`{"roomId":3,"type":"` + string(typ) + `"}`))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", typ, err)
			continue
		}
		if in.Type != typ {
			t.Errorf("%s: got type %s", typ, in.Type)
		}
	}
}

func TestDecodeInbound_BlankContentOnNonChat(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"roomId":1,"type":"HEARTBEAT","content":"  "}`)); err != nil {
		t.Errorf("blank content on a non-CHAT frame should be tolerated: %v", err)
	}
}

func TestCloseReason_Codes(t *testing.T) {
	cases := []struct {
		reason CloseReason
		code   int
	}{
		{ReasonUnauthenticated, 1003},
		{ReasonBadData, 1007},
		{ReasonPolicy, 1008},
		{ReasonServerError, 1011},
		{ReasonUnreliable, 1013},
	}
	for _, tc := range cases {
		if tc.reason.Code() != tc.code {
			t.Errorf("%s: code = %d, want %d", tc.reason, tc.reason.Code(), tc.code)
		}
	}
}
