package template

// The bundled templates. Content is opaque data as far as the control plane
// is concerned; the trees below cover the three scaffolds agents ask for
// most: a React+Vite app, an Express API and a plain static site.
func builtinTemplates() []Template {
	return []Template{
		{
			ID:          "react-vite",
			Name:        "React + Vite",
			Description: "React 18 single-page app with Vite dev server",
			Tree: Dir{
				"package.json": File(`{
  "name": "react-vite-app",
  "private": true,
  "version": "0.1.0",
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "vite build",
    "preview": "vite preview"
  },
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3.1"
  },
  "devDependencies": {
    "@vitejs/plugin-react": "^4.3.4",
    "vite": "^6.0.5"
  }
}
`),
				"vite.config.js": File(`import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: { port: 3000 },
})
`),
				"index.html": File(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>React App</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>
`),
				"README.md": File("# React + Vite\n\nRun `npm install` then `npm run dev`.\n"),
				"src": Dir{
					"main.jsx": File(`import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App.jsx'
import './index.css'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`),
					"App.jsx": File(`import { useState } from 'react'

export default function App() {
  const [count, setCount] = useState(0)
  return (
    <main>
      <h1>Hello from React</h1>
      <button onClick={() => setCount((c) => c + 1)}>count is {count}</button>
    </main>
  )
}
`),
					"index.css": File(`:root {
  font-family: system-ui, sans-serif;
  color-scheme: light dark;
}
body {
  margin: 0;
  display: grid;
  place-items: center;
  min-height: 100vh;
}
`),
					"components": Dir{
						"Button.jsx": File(`export default function Button({ children, ...props }) {
  return <button {...props}>{children}</button>
}
`),
					},
				},
				"public": Dir{
					"favicon.svg": File(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16"><circle cx="8" cy="8" r="7" fill="#646cff"/></svg>
`),
				},
			},
		},
		{
			ID:          "express-api",
			Name:        "Express API",
			Description: "Minimal Express REST API with health route and tests",
			Tree: Dir{
				"package.json": File(`{
  "name": "express-api",
  "private": true,
  "version": "0.1.0",
  "scripts": {
    "dev": "node --watch app.js",
    "start": "node app.js",
    "test": "node --test"
  },
  "dependencies": {
    "express": "^4.21.2"
  }
}
`),
				"app.js": File(`const express = require('express');
const routes = require('./routes/index');

const app = express();
app.use(express.json());
app.use('/api', routes);

app.get('/health', (req, res) => res.json({ status: 'ok' }));

const port = process.env.PORT || 3000;
app.listen(port, () => console.log('listening on :' + port));

module.exports = app;
`),
				"README.md": File("# Express API\n\nRun `npm install` then `npm run dev`.\n"),
				"routes": Dir{
					"index.js": File(`const { Router } = require('express');

const router = Router();

router.get('/items', (req, res) => {
  res.json({ items: [] });
});

module.exports = router;
`),
				},
				"services": Dir{
					"items.js": File(`const items = new Map();

exports.list = () => Array.from(items.values());
exports.get = (id) => items.get(id);
exports.put = (id, value) => items.set(id, value);
`),
				},
			},
		},
		{
			ID:          "static-site",
			Name:        "Static site",
			Description: "Plain HTML/CSS/JS site, no build step",
			Tree: Dir{
				"index.html": File(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Static Site</title>
    <link rel="stylesheet" href="styles/main.css" />
  </head>
  <body>
    <h1>It works</h1>
    <script src="scripts/main.js"></script>
  </body>
</html>
`),
				"README.md": File("# Static site\n\nOpen index.html in a browser, or serve the directory.\n"),
				"styles": Dir{
					"main.css": File(`body {
  font-family: system-ui, sans-serif;
  max-width: 60ch;
  margin: 4rem auto;
  padding: 0 1rem;
}
`),
				},
				"scripts": Dir{
					"main.js": File(`document.addEventListener('DOMContentLoaded', () => {
  console.log('static site ready');
});
`),
				},
			},
		},
	}
}
