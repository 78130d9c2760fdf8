package proto

const (
	Prompt      = "Enter your username: "
	QuitCommand = "quit"
)

func JoinNotice(name string) string {
	return name + " has joined the chat!"
}

func LeaveNotice(name string) string {
	return name + " has left the chat"
}

// DisconnectLog is the server-side log line for a registered session going away.
func DisconnectLog(name string) string {
	return name + " disconnected"
}

func ChatLine(name, content string) string {
	return name + ": " + content
}
