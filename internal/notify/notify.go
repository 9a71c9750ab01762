// Package notify envía alertas de seguridad por email a los usuarios
// afectados. Nada del flujo de autenticación depende de que el envío
// funcione: con sender nil todas las operaciones son no-ops y los errores
// de SMTP solo se loggean.
package notify

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	"time"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

var reuseAlertHTML = htemplate.Must(htemplate.New("reuse_alert").Parse(`
<p>Hola,</p>
<p>Detectamos que una credencial de tu cuenta ya invalidada volvió a usarse
el {{.When}}. Por precaución cerramos todas tus sesiones activas ({{.Sessions}}).</p>
<p>Si no fuiste vos, cambiá tu contraseña cuanto antes.</p>
`))

// Notifier despacha las alertas en background.
type Notifier struct {
	sender Sender
}

// New crea un Notifier. Con sender nil queda deshabilitado.
func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Enabled reporta si hay un sender configurado.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// ReuseAlert avisa al dueño de la cuenta que una credencial revocada fue
// presentada y que sus sesiones fueron cerradas. No bloquea al caller.
func (n *Notifier) ReuseAlert(email string, when time.Time, sessions int) {
	if !n.Enabled() || email == "" {
		return
	}

	data := struct {
		When     string
		Sessions int
	}{
		When:     when.UTC().Format(time.RFC1123),
		Sessions: sessions,
	}

	var html bytes.Buffer
	if err := reuseAlertHTML.Execute(&html, data); err != nil {
		logger.L().Error("notify: render reuse alert", logger.Err(err))
		return
	}
	text := fmt.Sprintf(
		"Hola,\n\nDetectamos que una credencial de tu cuenta ya invalidada volvió a usarse el %s. "+
			"Por precaución cerramos todas tus sesiones activas (%d).\n\n"+
			"Si no fuiste vos, cambiá tu contraseña cuanto antes.\n",
		data.When, sessions,
	)

	go func() {
		if err := n.sender.Send(email, "Alerta de seguridad: sesiones cerradas", html.String(), text); err != nil {
			logger.L().Warn("notify: reuse alert send failed",
				logger.Email(email), logger.Err(err))
		}
	}()
}
