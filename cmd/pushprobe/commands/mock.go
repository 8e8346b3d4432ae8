package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/fakeapi"
	"github.com/loykin/pushprobe/internal/util"
	"github.com/spf13/cobra"
)

const (
	defaultMockBackendAddr  = "127.0.0.1:5000"
	defaultMockProviderAddr = "127.0.0.1:5001"
	defaultMockAppID        = "00000000-0000-0000-0000-000000000000"
)

var MockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve an in-memory backend and push provider to run suites against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		m := doc.Mock

		backend := fakeapi.NewBackend(fakeapi.BackendOptions{
			Bookings:  m.Bookings,
			JWTSecret: m.JWTSecret,
			AdminRole: m.AdminRole,
		})
		provider := fakeapi.NewProvider(fakeapi.ProviderOptions{
			AppID:       util.TrimWithDefault(doc.Provider.AppID, defaultMockAppID),
			APIKey:      doc.Provider.APIKey,
			Players:     m.Players,
			Messageable: m.Players,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := common.GetLogger().WithComponent("mock")
		servers := []struct {
			name, addr string
			handler    http.Handler
		}{
			{"backend", util.TrimWithDefault(m.BackendAddr, defaultMockBackendAddr), backend.Handler()},
			{"provider", util.TrimWithDefault(m.ProviderAddr, defaultMockProviderAddr), provider.Handler()},
		}

		errCh := make(chan error, len(servers))
		for _, s := range servers {
			log.Info("starting fake server", "name", s.name, "addr", s.addr)
			go func() {
				if err := fakeapi.Serve(ctx, s.addr, s.handler, cmd.OutOrStdout()); err != nil {
					errCh <- fmt.Errorf("%s: %w", s.name, err)
					return
				}
				errCh <- nil
			}()
		}

		var firstErr error
		for range servers {
			if err := <-errCh; err != nil && firstErr == nil {
				firstErr = err
				stop()
			}
		}
		log.Info("fake servers stopped", "backend_notifications", len(backend.Sent()), "provider_messages", len(provider.Messages()))
		return firstErr
	},
}
