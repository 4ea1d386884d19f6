// chat CLI - Command line client for chat-app
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/zainabzahid711/chat-app/clients/go/chat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CHAT_URL")
	client := chat.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "rooms":
		rooms, err := client.ListRooms()
		exitOnError(err)
		for _, room := range rooms {
			fmt.Printf("  %d  %s\n", room.ID, room.Name)
		}

	case "create-room":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat create-room <name>")
			os.Exit(1)
		}
		room, err := client.CreateRoom(os.Args[2])
		exitOnError(err)
		fmt.Printf("Created room %d: %s\n", room.ID, room.Name)

	case "read":
		roomID := roomArg(2)
		messages, err := client.ListMessages(roomID)
		exitOnError(err)
		for _, msg := range messages {
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.User, msg.Content)
		}

	case "post":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chat post <room_id> <message> [user]")
			os.Exit(1)
		}
		roomID := roomArg(2)
		user := ""
		if len(os.Args) > 4 {
			user = os.Args[4]
		}
		msg, err := client.PostMessage(roomID, user, os.Args[3])
		exitOnError(err)
		fmt.Printf("Posted message %d\n", msg.ID)

	case "watch":
		roomID := roomArg(2)
		rc, err := client.JoinRoom(roomID)
		exitOnError(err)
		defer rc.Close()
		fmt.Printf("Watching room %d...\n", roomID)
		for {
			msg, err := rc.Receive()
			exitOnError(err)
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.User, msg.Content)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func roomArg(i int) int64 {
	if len(os.Args) <= i {
		fmt.Fprintln(os.Stderr, "room id required")
		os.Exit(1)
	}
	roomID, err := strconv.ParseInt(os.Args[i], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid room id: %s\n", os.Args[i])
		os.Exit(1)
	}
	return roomID
}

func usage() {
	fmt.Println(`chat CLI - chat-app client

Usage: chat <command> [options]

Commands:
  rooms                        List rooms
  create-room <name>           Create a room
  read <room_id>               Read a room's messages
  post <room_id> <msg> [user]  Post a message via REST
  watch <room_id>              Stream a room's broadcasts live

Environment:
  CHAT_URL   Server URL (default: http://localhost:8080)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
