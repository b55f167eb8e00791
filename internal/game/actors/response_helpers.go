package actors

import "Conquest/internal/game/actor/messages"

func ok(v any) *messages.Reply {
	return &messages.Reply{Value: v}
}

func fail(err error) *messages.Reply {
	return &messages.Reply{Err: err}
}

func reply(v any, err error) *messages.Reply {
	if err != nil {
		return fail(err)
	}
	return ok(v)
}
