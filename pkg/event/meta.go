package event

// EnableEvent is sent when the gateway enables the bot.
type EnableEvent struct {
	Base
}

func (EnableEvent) Type() EventType { return KeyEnable }

type DisableEvent struct {
	Base
}

func (DisableEvent) Type() EventType { return KeyDisable }

// ConnectEvent is the first frame on a fresh connection. Its SelfID is what
// binds the connection to a bot identity for asynchronous calls.
type ConnectEvent struct {
	Base
}

func (ConnectEvent) Type() EventType { return KeyConnect }
