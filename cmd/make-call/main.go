// Command make-call places an outbound Twilio call that is answered by the
// voice webhooks of a running tablecall server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/harunnryd/tablecall/pkg/app"
	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/harunnryd/tablecall/pkg/telephony/twilio"
)

func main() {
	configPath := flag.String("config", "config.yaml", "")
	from := flag.String("from", "", "caller ID, defaults to twilio.phone_number")
	to := flag.String("to", "", "")
	voiceURL := flag.String("voice_url", "", "override the incoming webhook URL")
	sendDigits := flag.String("send_digits", "", "")
	flag.Parse()
	if *to == "" {
		fmt.Println("usage: make-call -to=+123 [-from=+456] [-config=...]")
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dialer := twilio.NewDialer(app.TwilioConfig(cfg))
	callSID, err := dialer.DialWithOptions(ctx, *to, *from, *voiceURL, twilio.DialOptions{SendDigits: *sendDigits})
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}
