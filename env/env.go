package env

type Args struct {
	Test    *bool
	Verbose *bool
	Port    *int
	Bus     *string
	Serial  *string
	Listen  *string
}
