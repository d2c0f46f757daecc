package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aria/internal/audio"
	"aria/internal/auth"
	"aria/internal/automation"
	"aria/internal/chat"
	"aria/internal/core"
	"aria/internal/device"
	"aria/internal/gateway"
	"aria/internal/imagegen"
	"aria/internal/intent"
	"aria/internal/ipc"
	"aria/internal/notify"
	"aria/internal/proxy"
	"aria/internal/search"
	"aria/internal/speech"
	"aria/internal/status"
	"aria/internal/store"
	"aria/internal/wake"
	"aria/pkg/stt"
)

// envFallback overwrites an unset flag with the value of an env var.
func envFallback(flag string, dst *string, key string) {
	if cli.CommandLine.Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (empty for direct)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	dataDir := cli.StringP("data", "d", "data", "Data directory")
	modelPath := cli.StringP("model", "m", "third_party/whisper.cpp/models/ggml-medium.bin", "Whisper model path")
	lang := cli.String("lang", "en", "Input language")
	gatewayAddr := cli.String("gateway", "127.0.0.1:8765", "Websocket gateway address")
	wakePhrase := cli.String("wake-phrase", "aria", "Wake phrase")
	username := cli.String("user", "", "Name the assistant addresses you by")
	voice := cli.String("voice", "onyx", "Speech synthesis voice")
	faceCmd := cli.String("face-cmd", "", "Face capture helper command")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	// Flags win over env; env wins over the built-in defaults.
	envFallback("user", username, "ARIA_USERNAME")
	envFallback("voice", voice, "ARIA_VOICE")
	envFallback("wake-phrase", wakePhrase, "ARIA_WAKE_PHRASE")
	envFallback("data", dataDir, "ARIA_STATE_DIR")
	envFallback("face-cmd", faceCmd, "ARIA_FACE_CMD")
	assistant := "Aria"
	if v := os.Getenv("ARIA_NAME"); v != "" {
		assistant = v
	}
	dbPath := filepath.Join(*dataDir, "aria.db")
	if v := os.Getenv("ARIA_DB"); v != "" {
		dbPath = v
	}

	var httpClient *http.Client
	if *proxyAddr != "" {
		var err error
		httpClient, err = proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	} else {
		httpClient = proxy.NewDirectClient()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	)

	st, err := store.Open(dbPath)
	if err != nil {
		log.Error("Failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(*modelPath)
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper")

	ch := status.NewChannel(*dataDir)
	ch.Load()
	ch.SetImageRequest(status.NoImageRequest)

	mic := speech.NewMicRecognizer(rec, whisper, *lang)

	chatSvc := chat.New(client, st, *username, assistant)
	if err := chatSvc.EnsureSeed(context.Background()); err != nil {
		log.Warn("Failed to seed chat log", "err", err)
	}

	input := speech.NewInput(mic, *lang)
	input.Translating = func() { ch.SetStatus(status.Translating) }
	if *lang != "en" {
		input = input.WithTranslator(chatSvc)
	}

	ducker := audio.NewDucker([]string{"aria"}, 20)
	out := speech.NewOutput(speech.NewOpenAISynth(client, *voice), speech.NewBeepPlayer()).
		WithDucker(ducker).
		WithInterrupt(mic, "cut it")

	devices := device.NewController()
	auto := automation.NewExecutor(chatSvc, devices, *dataDir)

	engine := search.NewEngine(search.NewClient(httpClient), chatSvc)

	authMgr := auth.NewManager(st, auth.NewCameraCapture(*faceCmd), mic,
		func(ctx context.Context, text string) {
			out.Speak(ctx, text, speech.NewToken())
		})

	loggedIn := func(ctx context.Context) bool {
		user, err := st.ActiveUser(ctx)
		return err == nil && user != ""
	}

	rt := core.NewRuntime(ch, input, out,
		intent.NewClassifier(client), chatSvc, engine, auto, devices, loggedIn).
		WithChime(notify.Chime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waker := wake.NewListener(mic, ch, rt.Wake).
		WithPhrase(*wakePhrase).
		OnDetect(func() {
			out.Speak(ctx, "Yes? I am listening.", speech.NewToken())
		}).
		OnDisable(func() {
			out.Speak(ctx, "Wake word disabled. Say nothing, I will wait.", speech.NewToken())
		})
	images := imagegen.NewService(imagegen.NewOpenAIGenerator(client), ch, filepath.Join(*dataDir, "images"))

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "trigger":
			rt.Wake()
		case "mic-on":
			rt.SetMic(true)
		case "mic-off":
			rt.SetMic(false)
		case "query":
			rt.Submit(msg.Arg)
		case "wake-on":
			ch.SetWakeEnabled(true)
			ch.SetStatus(status.Available)
		case "wake-off":
			ch.SetWakeEnabled(false)
			ch.SetStatus(status.WakeWordDisabled)
		case "logout":
			if err := authMgr.Logout(context.Background()); err != nil {
				log.Warn("Logout failed", "err", err)
			}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	go waker.Run(ctx)
	go images.Run(ctx)
	go rt.Run(ctx)

	gw := gateway.NewServer(ch, rt, authMgr)
	go func() {
		if err := gw.ListenAndServe(ctx, *gatewayAddr); err != nil {
			log.Error("Gateway failed", "err", err)
		}
	}()

	ch.SetWakeEnabled(true)
	ch.SetStatus(status.Available)
	log.Info("Boot up - successful")
	rt.Greet(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("Shutting down on signal")
	case <-rt.Done():
		log.Info("Shutting down on exit intent")
	}
	cancel()
}
