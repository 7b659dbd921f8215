// Package web serves the lockbox upload form.
//
// Routes:
//   - GET /: the form, with any pending flash messages
//   - POST /process: encrypt or decrypt the uploaded file and download it
//   - GET /generate-key: download a new base64 keyfile
//
// Errors never produce a partial download. They are turned into a flash
// message (an HMAC-signed cookie) and the browser is redirected back to the
// form. Passwords, keys and file contents are never logged.
package web
