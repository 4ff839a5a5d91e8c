package response

// Resp is the envelope every ops endpoint answers with.
type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// Page is the data of a list endpoint. Items is never null.
type Page[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

func NewPage[T any](items []T, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Total: total, Items: items}
}

func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error falls back to the code's default message, then to the generic server one.
func Error(code int, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = Message(code)
	}
	return New(code, msg, nil)
}

func Message(code int) string {
	if m, ok := CodeMsgMap[code]; ok {
		return m
	}
	return CodeMsgMap[CodeServerError]
}
