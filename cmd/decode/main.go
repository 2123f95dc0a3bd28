// decode prints the readings carried by uplink packets given as hex, one
// per argument or one per line on stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/payload"
)

func main() {
	asJson := flag.Bool("json", false, "print JSON instead of a query string")
	flag.Parse()

	packets := flag.Args()
	if len(packets) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			packets = append(packets, scanner.Text())
		}
	}

	failed := false
	for _, hex := range packets {
		hex = strings.TrimPrefix(strings.TrimSpace(hex), "$SEND: ")
		if hex == "" {
			continue
		}
		if err := decode(os.Stdout, hex, *asJson); err != nil {
			logger.Errorf("Unable to decode [%v] [%v]", hex, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func decode(w io.Writer, hex string, asJson bool) error {
	r, err := payload.DecodeHex(hex)
	if err != nil {
		return err
	}
	if asJson {
		js, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(js))
		return err
	}
	vals, err := r.Values()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, vals.Encode())
	return err
}
