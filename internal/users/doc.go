// Package users is the Mongo-backed account repository. It implements
// goTodo.UserProvider over the users collection, where the email address is
// the login username and the password field holds a digest.
package users
