// Package files uploads attachments through /uploads.json and links them to
// tickets. Uploads return a token; AttachToTicket consumes tokens by adding
// a ticket comment carrying them.
package files
