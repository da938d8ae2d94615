package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/Manta-Network/manta-signer/seedmgr"
	"golang.org/x/crypto/ssh/terminal"
)

// readPassword reads a line from the terminal without echo.
var readPassword = func() ([]byte, error) {
	return terminal.ReadPassword(int(os.Stdin.Fd()))
}

// ProvidePassphrase is used to prompt for the signer password outside of a
// setup flow.
func ProvidePassphrase() ([]byte, error) {
	prompt := "Enter the password of your signer: "
	for {
		fmt.Print(prompt)
		pass, err := readPassword()
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		return pass, nil
	}
}

// PassphraseOrDecline prompts once for a password.  An empty answer declines
// and returns nil.
func PassphraseOrDecline(prefix string) ([]byte, error) {
	fmt.Printf("%s (leave empty to decline): ", prefix)
	pass, err := readPassword()
	if err != nil {
		return nil, err
	}
	fmt.Print("\n")
	pass = bytes.TrimSpace(pass)
	if len(pass) == 0 {
		return nil, nil
	}
	return pass, nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string, defaultEntry string) (string, error) {
	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// Confirm prompts the user for a boolean (yes/no) with the given prefix.
// The function will repeat the prompt to the user until they enter a valid
// reponse.
func Confirm(reader *bufio.Reader, prefix string, defaultEntry string) (bool, error) {
	// Setup the valid responses.
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// promptPass prompts the user for a passphrase with the given prefix.  The
// function will ask the user to confirm the passphrase and will repeat the
// prompts until they enter a matching response.
func promptPass(prefix string, confirm bool) ([]byte, error) {
	// Prompt the user until they enter a passphrase.
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		pass, err := readPassword()
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Print("Confirm password: ")
		confirm, err := readPassword()
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		confirm = bytes.TrimSpace(confirm)
		if !bytes.Equal(pass, confirm) {
			fmt.Println("The entered passwords do not match")
			continue
		}

		return pass, nil
	}
}

// NewPassphrase prompts for a new signer password and its confirmation
// until both match.
func NewPassphrase() ([]byte, error) {
	return promptPass("Enter a new password for your signer", true)
}

// Passphrase prompts for an existing password without confirmation.
func Passphrase(prefix string) ([]byte, error) {
	return promptPass(prefix, false)
}

// ShowMnemonic displays a freshly generated recovery phrase and waits until
// the user confirms it has been written down.
func ShowMnemonic(reader *bufio.Reader, phrase string) error {
	fmt.Println("Your recovery phrase is:")
	for i, word := range strings.Fields(phrase) {
		fmt.Printf("%2d. %s\n", i+1, word)
	}
	fmt.Println("IMPORTANT: Keep the recovery phrase in a safe place as you\n" +
		"will NOT be able to restore your account without it.")
	fmt.Println("Please keep in mind that anyone who has access\n" +
		"to the phrase can also restore your account thereby\n" +
		"giving them access to all your funds, so it is\n" +
		"imperative that you keep it in a secure location.")

	for {
		fmt.Print(`Once you have stored the recovery phrase in a safe ` +
			`and secure location, enter "OK" to continue: `)
		confirm, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		confirm = strings.TrimSpace(confirm)
		confirm = strings.Trim(confirm, `"`)
		if confirm == "OK" {
			return nil
		}
	}
}

// Mnemonic prompts for an existing recovery phrase until a valid one is
// entered.  The phrase is returned as entered, with whitespace collapsed.
func Mnemonic(reader *bufio.Reader) (string, error) {
	for {
		fmt.Print("Enter your 12 word recovery phrase: ")
		phrase, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
		if phrase == "" {
			continue
		}

		seed, err := seedmgr.SeedFromMnemonic(phrase)
		if err != nil {
			fmt.Println("Invalid recovery phrase specified")
			continue
		}
		zero.Bytes(seed)
		return phrase, nil
	}
}
