// Package generator renders a composed layer stack as a static Leaflet page
// and as a JSON payload the page can poll for updates.
package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/natefinch/atomic"

	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/session"
)

// PageOptions controls the live-refresh behaviour of the generated page
type PageOptions struct {
	// PayloadURL is fetched by the page to refresh its layers; empty disables polling
	PayloadURL string
	Refresh    time.Duration
}

var pageTemplate = template.Must(template.New("map").Funcs(template.FuncMap{
	"toJSON": toJSON,
}).Parse(pageHTML))

// GenerateMapHTML writes the map page for snap to outputPath
func GenerateMapHTML(snap *session.Snapshot, outputPath string, opts PageOptions) error {
	data := struct {
		Title          string
		Payload        Payload
		Panel          Panel
		LastUpdated    string
		PayloadURL     string
		RefreshSeconds int
	}{
		Title:          snap.Map.Title,
		Payload:        BuildPayload(snap),
		Panel:          BuildPanel(snap.Stack),
		LastUpdated:    formatBuiltAt(snap.BuiltAt),
		PayloadURL:     opts.PayloadURL,
		RefreshSeconds: int(opts.Refresh / time.Second),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return maperrors.Wrap(err, maperrors.ErrRender, "failed to render map page")
	}
	if err := atomic.WriteFile(outputPath, &buf); err != nil {
		return fmt.Errorf("write %s failed: %w", outputPath, err)
	}
	return nil
}

func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
   <meta charset="UTF-8"/>
   <title>{{ .Title }}</title>
   <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
   <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
   <style>
      :root {
         --bg-color: #121212;
         --text-color: #e0e0e0;
         --card-bg: #1e1e1e;
         --card-border: #333;
         --summary-bg: #252525;
         --button-active: #3d3d5c;
         --problem-border: #a52a2a;
      }
      html { background-color: #121212; }
      body {
         font-family: Arial, sans-serif;
         max-width: 1400px;
         margin: 0 auto;
         padding: 20px;
         background-color: var(--bg-color);
         color: var(--text-color);
      }
      .layout { display: grid; grid-template-columns: 1fr 320px; gap: 16px; }
      #map { height: 700px; width: 100%; border: 2px solid var(--card-border); border-radius: 5px; }
      .panel { background-color: var(--card-bg); border: 1px solid var(--card-border); border-radius: 5px; padding: 10px; }
      .panel h2 { margin-top: 0; font-size: 1.1em; }
      .layer-toggle {
         display: flex; align-items: center; width: 100%;
         margin: 4px 0; padding: 6px 8px;
         background: var(--summary-bg); color: var(--text-color);
         border: 1px solid var(--card-border); border-radius: 4px; cursor: pointer; text-align: left;
      }
      .layer-toggle.active { background: var(--button-active); }
      .swatch { width: 14px; height: 14px; margin-right: 8px; border: 1px solid #fff; }
      .info-item { margin-bottom: 12px; }
      .info-item h3 { margin: 0 0 4px; font-size: 1em; }
      .legend-item { display: flex; align-items: center; margin: 3px 0; font-size: 0.9em; }
      .problem { border-left: 3px solid var(--problem-border); padding-left: 6px; margin: 4px 0; font-size: 0.85em; }
      .updated { font-size: 0.8em; color: #888; }
   </style>
</head>
<body>
   <h1>{{ .Title }}</h1>
   <div class="updated">Last updated: <span id="last-updated">{{ .LastUpdated }}</span></div>
   <div class="layout">
      <div id="map"></div>
      <div>
         <div class="panel">
            <h2>Layers</h2>
            <div id="layer-buttons">
            {{ range .Panel.Buttons }}
            <button class="layer-toggle{{ if .Visible }} active{{ end }}" id="btn-{{ .ID }}" data-layer="{{ .ID }}">
               <span class="swatch" style="background: {{ .Color }}"></span>{{ .Name }}
            </button>
            {{ else }}
            <p>No layers loaded.</p>
            {{ end }}
            </div>
         </div>
         {{ if .Panel.Info }}
         <div class="panel" style="margin-top: 12px;">
            <h2>Scenario Information</h2>
            {{ range .Panel.Info }}
            <div class="info-item" id="info-{{ .ID }}">
               <h3>{{ .Title }}</h3>
               {{ .Content }}
            </div>
            {{ end }}
         </div>
         {{ end }}
         {{ if .Panel.Legend }}
         <div class="panel" style="margin-top: 12px;">
            <h2>Legend</h2>
            {{ range .Panel.Legend }}
            <div class="legend-item"><span class="swatch" style="background: {{ .Color }}"></span>{{ .Label }}</div>
            {{ end }}
         </div>
         {{ end }}
         <div class="panel" style="margin-top: 12px;" id="problems"></div>
      </div>
   </div>
   <script>
      const initialPayload = {{ toJSON .Payload }};
      const payloadURL = {{ .PayloadURL }};
      const refreshSeconds = {{ .RefreshSeconds }};

      let map;
      let stack = [];
      const overlays = {};
      const visibility = {};

      function escapeHtml(str) {
          return String(str).replace(/&/g,'&amp;').replace(/</g,'&lt;').replace(/>/g,'&gt;').replace(/"/g,'&quot;');
      }

      function colorFor(style, props) {
          if (style.kind === 'unique' && style.field && style.values) {
              const v = props ? props[style.field] : undefined;
              if (typeof v === 'string' && style.values[v]) return style.values[v];
          }
          return style.color || '#3388ff';
      }

      function popupFor(layer, props) {
          let html = '<div style="color:#000;min-width:220px;max-width:420px;">';
          if (layer.info) {
              html += '<h3 style="margin:0 0 6px;">' + escapeHtml(layer.info.title || layer.name) + '</h3>' + layer.info.html;
          } else {
              html += '<h3 style="margin:0 0 6px;">' + escapeHtml(layer.name) + '</h3>';
          }
          if (props) {
              html += '<table style="font-size:0.85em;">';
              Object.keys(props).forEach(k => {
                  const v = props[k];
                  if (v === null || typeof v === 'object') return;
                  html += '<tr><td><strong>' + escapeHtml(k) + '</strong></td><td>' + escapeHtml(v) + '</td></tr>';
              });
              html += '</table>';
          }
          return html + '</div>';
      }

      function buildOverlay(layer) {
          const style = layer.style || {};
          return L.geoJSON(layer.data, {
              style: f => {
                  const c = colorFor(style, f.properties);
                  return { color: c, fillColor: c, fillOpacity: style.fillOpacity || 0.2, weight: style.weight || 2 };
              },
              pointToLayer: (f, latlng) => {
                  if (style.kind === 'picture' && style.iconUrl) {
                      return L.marker(latlng, { icon: L.icon({ iconUrl: style.iconUrl, iconSize: [24, 24] }) });
                  }
                  const c = colorFor(style, f.properties);
                  return L.circleMarker(latlng, { radius: style.radius || 5, color: c, fillColor: c, fillOpacity: 0.8, weight: 1 });
              },
              onEachFeature: (f, l) => l.bindPopup(popupFor(layer, f.properties), { maxWidth: 440 })
          });
      }

      // Re-adds visible layers bottom to top so toggling never changes stacking
      function redraw() {
          stack.forEach(l => { if (overlays[l.id]) map.removeLayer(overlays[l.id]); });
          stack.forEach(l => { if (visibility[l.id] && overlays[l.id]) overlays[l.id].addTo(map); });
      }

      function applyPayload(payload) {
          stack.forEach(l => { if (overlays[l.id]) map.removeLayer(overlays[l.id]); delete overlays[l.id]; });
          stack = payload.layers || [];
          stack.forEach(l => {
              overlays[l.id] = buildOverlay(l);
              if (!(l.id in visibility)) visibility[l.id] = l.visible;
          });
          redraw();
          renderButtons();

          const problems = document.getElementById('problems');
          const list = payload.problems || [];
          problems.style.display = list.length ? '' : 'none';
          problems.innerHTML = '<h2>Unavailable Layers</h2>' + list.map(p =>
              '<div class="problem"><strong>' + escapeHtml(p.name) + '</strong>: ' + escapeHtml(p.reason) + '</div>').join('');
          if (payload.lastUpdated) document.getElementById('last-updated').textContent = payload.lastUpdated;
      }

      // Buttons follow the latest payload, top layer first, so layers that
      // appear on a later refresh get a toggle too
      function renderButtons() {
          const container = document.getElementById('layer-buttons');
          if (!stack.length) {
              container.innerHTML = '<p>No layers loaded.</p>';
              return;
          }
          container.innerHTML = stack.slice().reverse().map(l => {
              const color = (l.style && l.style.color) || '';
              return '<button class="layer-toggle' + (visibility[l.id] ? ' active' : '') + '" id="btn-' + escapeHtml(l.id) +
                  '" data-layer="' + escapeHtml(l.id) + '"><span class="swatch" style="background: ' + escapeHtml(color) +
                  '"></span>' + escapeHtml(l.name) + '</button>';
          }).join('');
      }

      function toggleLayer(id) {
          visibility[id] = !visibility[id];
          const btn = document.getElementById('btn-' + id);
          if (btn) btn.classList.toggle('active', visibility[id]);
          redraw();
      }

      async function refresh() {
          try {
              const response = await fetch(payloadURL + '?_=' + Date.now());
              if (!response.ok) return;
              applyPayload(await response.json());
          } catch (e) { console.error('Payload refresh failed:', e); }
      }

      function initMap() {
          const center = initialPayload.center || [0, 0];
          map = L.map('map').setView(center, initialPayload.zoom || 2);
          L.tileLayer(initialPayload.basemap, { attribution: initialPayload.attribution, subdomains: 'abcd', maxZoom: 20 }).addTo(map);

          document.getElementById('layer-buttons').addEventListener('click', e => {
              const btn = e.target.closest('.layer-toggle');
              if (btn) toggleLayer(btn.dataset.layer);
          });

          applyPayload(initialPayload);
          if (payloadURL && refreshSeconds > 0) setInterval(refresh, refreshSeconds * 1000);
      }

      document.addEventListener('DOMContentLoaded', initMap);
   </script>
</body>
</html>
`
