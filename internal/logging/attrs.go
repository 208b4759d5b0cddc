package logging

import "log/slog"

func FlowID(id string) slog.Attr {
	return slog.String("flow_id", id)
}

func RunID(id string) slog.Attr {
	return slog.String("run_id", id)
}

func Step(name string) slog.Attr {
	return slog.String("step", name)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
