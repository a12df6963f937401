package context

type Key string

const (
	User   Key = "user"
	Claims Key = "claims"
	Params Key = "params"
)
